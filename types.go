package videorender

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width, Height int
}

// IsZero returns true if either dimension is zero or negative.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect represents a rectangle with position and size, in pixels.
type Rect struct {
	X, Y int // Bottom-left position (OpenGL viewport convention)
	W, H int // Width and height
}

// Size returns the dimensions of the rectangle.
func (r Rect) Size() Size {
	return Size{Width: r.W, Height: r.H}
}

// PixelFormat identifies the plane layout of a decoded frame.
type PixelFormat int

const (
	// PixelFormatUndefined is reported by decoders that do not tag their
	// output. It is drawn as YUV420 planar.
	PixelFormatUndefined PixelFormat = iota
	// PixelFormatOpaque is a frame that is already an RGBA texture on the GPU.
	PixelFormatOpaque
	// PixelFormatYUV420Planar has Y, U and V in three separate planes.
	PixelFormatYUV420Planar
	// PixelFormatYUV420SemiPlanar has a Y plane and one interleaved UV plane.
	PixelFormatYUV420SemiPlanar
)

// String returns the pixel format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUndefined:
		return "undefined"
	case PixelFormatOpaque:
		return "opaque"
	case PixelFormatYUV420Planar:
		return "yuv420p"
	case PixelFormatYUV420SemiPlanar:
		return "yuv420sp"
	default:
		return "unknown"
	}
}

// Resolve maps the format to the variant actually drawn.
func (f PixelFormat) Resolve() PixelFormat {
	switch f {
	case PixelFormatOpaque, PixelFormatYUV420SemiPlanar:
		return f
	default:
		return PixelFormatYUV420Planar
	}
}

// Euler holds aerospace (ZYX) Euler angles in radians.
type Euler struct {
	Roll  float32 // phi, rotation around X
	Pitch float32 // theta, rotation around Y
	Yaw   float32 // psi, rotation around Z
}

// FrameMetadata is the telemetry attached to a decoded frame.
type FrameMetadata struct {
	CameraPan  float32 // radians
	CameraTilt float32 // radians

	// Field of view in degrees; 0 means unset.
	HFOV float32
	VFOV float32

	DroneAttitude     Euler
	Altitude          float32 // meters
	GroundSpeed       float32 // meters per second
	BatteryPercentage int
}

// DecoderOutput is the record a decoder attaches to every output buffer.
//
// For the YUV formats Planes and Strides describe the pixel data. For
// PixelFormatOpaque the frame is already on the GPU and Texture holds the
// RGBA texture name; Planes are ignored.
type DecoderOutput struct {
	Planes  [3][]byte
	Strides [3]int

	Width, Height       int
	SARWidth, SARHeight int

	Format  PixelFormat
	Texture uint32

	Metadata FrameMetadata

	// Instrumentation only; zero means unknown.
	DemuxOutputTime   time.Time
	DecoderOutputTime time.Time
	CaptureTime       time.Time
}

// ScaledSize returns the frame size multiplied by the sample aspect ratio.
func (o *DecoderOutput) ScaledSize() Size {
	return Size{
		Width:  o.Width * o.SARWidth,
		Height: o.Height * o.SARHeight,
	}
}

// Media describes the stream a decoder produces.
type Media struct {
	Name string

	// Camera field of view in degrees; 0 means unset.
	HFOV float32
	VFOV float32
}

// HeadOrientation is the viewer's current head pose and the pose recorded
// when the viewer last recalibrated.
type HeadOrientation struct {
	Head      mgl32.Quat
	Reference mgl32.Quat
}

// Viewport describes the surface a Renderer draws into.
type Viewport struct {
	Window Size

	// RenderArea is the part of the window that receives video. A zero
	// width or height falls back to the window dimension.
	RenderArea Rect

	DistortionCorrection bool
	HeadTracking         bool
}

// ResolvedRenderArea returns the render area with window fallbacks applied.
func (v Viewport) ResolvedRenderArea() Rect {
	area := v.RenderArea
	if area.W == 0 {
		area.W = v.Window.Width
	}
	if area.H == 0 {
		area.H = v.Window.Height
	}
	return area
}

// RenderStatus is the outcome of a Render call.
type RenderStatus int

const (
	// RenderStatusNothingRendered means there was nothing to draw.
	RenderStatusNothingRendered RenderStatus = iota
	// RenderStatusRendered means a frame was drawn.
	RenderStatusRendered
	// RenderStatusError means a stage failed; the error says which.
	RenderStatusError
)

// String returns the status name.
func (s RenderStatus) String() string {
	switch s {
	case RenderStatusNothingRendered:
		return "nothing-rendered"
	case RenderStatusRendered:
		return "rendered"
	case RenderStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParsePixelFormat maps a name returned by PixelFormat.String back to the format.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f := PixelFormatUndefined; f <= PixelFormatYUV420SemiPlanar; f++ {
		if f.String() == name {
			return f, nil
		}
	}
	return PixelFormatUndefined, fmt.Errorf("unknown pixel format '%s'", name)
}
