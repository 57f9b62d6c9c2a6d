package opengl

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/go-theft-auto/videorender"
	"github.com/go-theft-auto/videorender/hud"
)

const overlayVertexSource = `
#version 410 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec4 aColor;

out vec4 Color;

uniform mat4 projection;

void main() {
    gl_Position = projection * vec4(aPos, 0.0, 1.0);
    Color = aColor;
}
`

const overlayFragmentSource = `
#version 410 core
in vec4 Color;

out vec4 FragColor;

void main() {
    FragColor = Color;
}
`

// Overlay draws the telemetry HUD with alpha blending on top of the video.
type Overlay struct {
	shader   uint32
	vao, vbo uint32
	ebo      uint32
	projLoc  int32

	media *videorender.Media
	style hud.Style
}

var _ videorender.Overlay = (*Overlay)(nil)

// NewOverlay creates the HUD program and its buffers.
func NewOverlay(media *videorender.Media, style hud.Style) (_ *Overlay, _err error) {
	o := &Overlay{
		media: media,
		style: style,
	}
	defer func() {
		if _err != nil {
			o.Delete()
		}
	}()

	var err error
	o.shader, err = createShaderProgram(overlayVertexSource, overlayFragmentSource)
	if err != nil {
		return nil, fmt.Errorf("unable to create the HUD shader: %w", err)
	}
	o.projLoc = gl.GetUniformLocation(o.shader, cstr("projection"))

	gl.GenVertexArrays(1, &o.vao)
	gl.BindVertexArray(o.vao)
	gl.GenBuffers(1, &o.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.GenBuffers(1, &o.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, o.ebo)
	if o.vao == 0 || o.vbo == 0 || o.ebo == 0 {
		gl.BindVertexArray(0)
		return nil, fmt.Errorf("%w: unable to create the HUD buffers", videorender.ErrInitialization)
	}

	// Vertex layout: Pos (2 floats) + Color (1 uint32)
	stride := int32(unsafe.Sizeof(hud.Vertex{}))
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 4, gl.UNSIGNED_BYTE, true, stride, unsafe.Offsetof(hud.Vertex{}.Color))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	return o, nil
}

// SetMedia sets the media whose field of view scales the HUD.
func (o *Overlay) SetMedia(media *videorender.Media) {
	o.media = media
}

// Render draws the HUD for one frame into the bound target.
func (o *Overlay) Render(ctx context.Context, params videorender.OverlayParams) error {
	if params.Viewport.IsZero() {
		return fmt.Errorf("%w: overlay viewport %dx%d", videorender.ErrInvalidGeometry, params.Viewport.Width, params.Viewport.Height)
	}

	batch := hud.AcquireBatch()
	defer hud.ReleaseBatch(batch)
	hud.Build(batch, hud.Input{
		OverlayParams: params,
		Media:         o.media,
		Style:         o.style,
	})
	if batch.Empty() {
		return nil
	}

	// Save GL state
	var lastProgram int32
	var lastBlendSrc, lastBlendDst int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &lastProgram)
	gl.GetIntegerv(gl.BLEND_SRC_ALPHA, &lastBlendSrc)
	gl.GetIntegerv(gl.BLEND_DST_ALPHA, &lastBlendDst)
	blendEnabled := gl.IsEnabled(gl.BLEND)
	depthEnabled := gl.IsEnabled(gl.DEPTH_TEST)
	cullEnabled := gl.IsEnabled(gl.CULL_FACE)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.DEPTH_TEST)

	gl.UseProgram(o.shader)
	proj := mgl32.Ortho2D(0, float32(params.Viewport.Width), float32(params.Viewport.Height), 0)
	gl.UniformMatrix4fv(o.projLoc, 1, false, &proj[0])

	gl.BindVertexArray(o.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(batch.Vertices)*int(unsafe.Sizeof(hud.Vertex{})),
		gl.Ptr(batch.Vertices), gl.STREAM_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, o.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(batch.Indices)*2,
		gl.Ptr(batch.Indices), gl.STREAM_DRAW)

	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(len(batch.Indices)), gl.UNSIGNED_SHORT, 0)

	// Restore GL state
	gl.BindVertexArray(0)
	gl.UseProgram(uint32(lastProgram))
	gl.BlendFunc(uint32(lastBlendSrc), uint32(lastBlendDst))
	setEnabled(gl.BLEND, blendEnabled)
	setEnabled(gl.DEPTH_TEST, depthEnabled)
	setEnabled(gl.CULL_FACE, cullEnabled)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("GL error 0x%x while drawing the HUD", code)
	}
	return nil
}

func setEnabled(capability uint32, enabled bool) {
	if enabled {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

// Delete releases OpenGL resources.
func (o *Overlay) Delete() {
	if o.ebo != 0 {
		gl.DeleteBuffers(1, &o.ebo)
		o.ebo = 0
	}
	if o.vbo != 0 {
		gl.DeleteBuffers(1, &o.vbo)
		o.vbo = 0
	}
	if o.vao != 0 {
		gl.DeleteVertexArrays(1, &o.vao)
		o.vao = 0
	}
	if o.shader != 0 {
		gl.DeleteProgram(o.shader)
		o.shader = 0
	}
}
