package opengl

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// HeadStep is how far one arrow key press turns the head.
const HeadStep = float32(2 * mgl32.Pi / 180)

// HeadController receives head movements from an input device.
type HeadController interface {
	RotateHead(yaw, pitch float32)
	Recalibrate()
}

// GLFWHeadAdapter drives a HeadController from the keyboard: the arrow
// keys turn the head and R recalibrates. Escape asks the window to close.
type GLFWHeadAdapter struct {
	window *glfw.Window
	head   HeadController

	// Called after a key changed the distortion or head-tracking mode.
	OnToggleDistortion   func()
	OnToggleHeadTracking func()
}

// NewGLFWHeadAdapter installs the key callback on window.
func NewGLFWHeadAdapter(window *glfw.Window, head HeadController) *GLFWHeadAdapter {
	adapter := &GLFWHeadAdapter{
		window: window,
		head:   head,
	}
	window.SetKeyCallback(adapter.keyCallback)
	return adapter
}

func (a *GLFWHeadAdapter) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Release {
		return
	}

	if yaw, pitch, ok := headStepForKey(key); ok {
		a.head.RotateHead(yaw, pitch)
		return
	}

	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyR:
		a.head.Recalibrate()
	case glfw.KeyD:
		if a.OnToggleDistortion != nil {
			a.OnToggleDistortion()
		}
	case glfw.KeyH:
		if a.OnToggleHeadTracking != nil {
			a.OnToggleHeadTracking()
		}
	case glfw.KeyEscape:
		w.SetShouldClose(true)
	}
}

// headStepForKey maps the arrow keys to a head rotation. Looking left is a
// negative yaw, looking up a positive pitch.
func headStepForKey(key glfw.Key) (yaw, pitch float32, ok bool) {
	switch key {
	case glfw.KeyLeft:
		return -HeadStep, 0, true
	case glfw.KeyRight:
		return HeadStep, 0, true
	case glfw.KeyUp:
		return 0, HeadStep, true
	case glfw.KeyDown:
		return 0, -HeadStep, true
	default:
		return 0, 0, false
	}
}
