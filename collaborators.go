package videorender

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Queue is an opaque handle to one consumer queue of a Decoder.
type Queue any

// Buffer is a decoder-owned frame buffer. The Renderer borrows it and hands
// it back with Decoder.ReleaseOutputBuffer exactly once. Implementations
// must be comparable (typically a pointer).
type Buffer interface {
	Output() *DecoderOutput
}

// Decoder produces decoded frames into per-consumer output queues.
type Decoder interface {
	AddOutputQueue(ctx context.Context) (Queue, error)
	RemoveOutputQueue(ctx context.Context, queue Queue) error

	// DequeueOutputBuffer returns ErrQueueEmpty when nothing is queued and
	// blocking is false.
	DequeueOutputBuffer(ctx context.Context, queue Queue, blocking bool) (Buffer, error)
	ReleaseOutputBuffer(ctx context.Context, buffer Buffer) error

	IsConfigured() bool
	Media() *Media
}

// OverlayParams are the inputs of one overlay pass.
type OverlayParams struct {
	// Frame size multiplied by the sample aspect ratio.
	Scaled   Size
	Viewport Size
	Metadata FrameMetadata

	DistortionActive   bool
	HeadTrackingActive bool

	// Set only when head tracking is active.
	Head *Euler
}

// Overlay draws telemetry on top of the video.
type Overlay interface {
	SetMedia(media *Media)
	Render(ctx context.Context, params OverlayParams) error
	Delete()
}

// HMDModel selects the lens coefficients of a head-mounted display.
type HMDModel int

const (
	HMDModelUnknown HMDModel = iota
	HMDModelCockpitGlasses
	HMDModelCockpitGlasses2
)

// String returns the model name used in settings files.
func (m HMDModel) String() string {
	switch m {
	case HMDModelCockpitGlasses:
		return "cockpitglasses"
	case HMDModelCockpitGlasses2:
		return "cockpitglasses2"
	default:
		return "unknown"
	}
}

// DisplayScreen describes the physical screen placed in the headset.
type DisplayScreen struct {
	DPIX, DPIY   float32
	DeviceMargin float32 // millimeters between the tray and the screen bottom edge
}

// HMDDistortion is the lens calibration of the headset.
type HMDDistortion struct {
	Model HMDModel
	IPD   float32 // interpupillary distance, millimeters
	Scale float32
	PanH  float32
	PanV  float32
}

// DistortionConfig seeds a Distortion pass.
type DistortionConfig struct {
	FirstTexUnit uint32
	RenderSize   Size

	// Calibrated is false when no Settings were available; the pass then
	// uses its built-in defaults.
	Calibrated bool
	Screen     DisplayScreen
	Lens       HMDDistortion
}

// Distortion re-projects an off-screen render through a lens model.
type Distortion interface {
	Render(ctx context.Context, texture uint32, source Size) error
	Delete()
}

// Settings provides display and lens calibration.
type Settings interface {
	DisplayScreen() DisplayScreen
	HMDDistortion() HMDDistortion
}

// Session provides the viewer's head orientation and the playback clock.
type Session interface {
	HeadOrientation() mgl32.Quat
	HeadReferenceOrientation() mgl32.Quat

	// CurrentTime and Duration return 0 when unknown.
	CurrentTime() time.Duration
	Duration() time.Duration
}

// VideoProgram draws one decoded frame into the bound target.
type VideoProgram interface {
	DrawFrame(ctx context.Context, out *DecoderOutput, format PixelFormat, viewport Size, transform *ViewTransform) error
	Delete()
}

// OffscreenTarget is a color+depth render target.
type OffscreenTarget interface {
	// Bind makes the target current, sets the viewport to its size and clears it.
	Bind()
	Texture() uint32
	Size() Size
	Delete()
}

// Backend creates the GPU-side pieces a Renderer drives. All methods run
// on the thread that owns the graphics context.
type Backend interface {
	// PrepareScreen sets up default state after (re)configuration.
	PrepareScreen(area Rect)
	// BindScreen makes the default surface current with the given viewport.
	BindScreen(area Rect)

	NewVideoProgram(ctx context.Context) (VideoProgram, error)
	NewOverlay(ctx context.Context, media *Media) (Overlay, error)
	NewOffscreenTarget(ctx context.Context, size Size) (OffscreenTarget, error)
	NewDistortion(ctx context.Context, cfg DistortionConfig) (Distortion, error)
}
