package videorender

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/xsync"
)

// Renderer composes video, overlay and the optional distortion pass onto
// one surface. Configure, Render, AttachDecoder, DetachDecoder and Close
// are serialized by one lock and must be called on the thread owning the
// graphics context.
type Renderer struct {
	locker xsync.Mutex

	backend         Backend
	settings        Settings
	session         Session
	clock           clock.Clock
	repeatLastFrame bool

	running bool
	closed  bool

	viewport         Viewport
	renderArea       Rect
	distortionActive bool

	video      VideoProgram
	overlay    Overlay
	offscreen  OffscreenTarget
	distortion Distortion

	decoder Decoder
	queue   Queue
	media   *Media
	frames  frameAcquirer
}

// New creates an unconfigured Renderer. Call Configure before Render.
func New(backend Backend, opts ...Option) *Renderer {
	r := &Renderer{
		backend:         backend,
		clock:           clock.New(),
		repeatLastFrame: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Configured returns true if Render will draw.
func (r *Renderer) Configured() bool {
	return xsync.DoR1(context.Background(), &r.locker, func() bool {
		return r.running
	})
}

// DistortionActive returns true if the HMD pass is set up.
func (r *Renderer) DistortionActive() bool {
	return xsync.DoR1(context.Background(), &r.locker, func() bool {
		return r.running && r.distortionActive
	})
}

// RenderArea returns the part of the window the renderer draws into.
func (r *Renderer) RenderArea() (Rect, error) {
	return xsync.DoR2(context.Background(), &r.locker, func() (Rect, error) {
		if !r.running {
			return Rect{}, ErrNotConfigured
		}
		return r.renderArea, nil
	})
}

// Configure tears down every GPU resource and rebuilds them for the new
// viewport. A zero render area leaves the renderer unconfigured without
// error. If only the distortion pass fails, the renderer stays configured
// without it and the returned error wraps ErrDistortionDisabled.
func (r *Renderer) Configure(ctx context.Context, vp Viewport) error {
	logger.Debugf(ctx, "Configure(ctx, %#+v)", vp)
	defer logger.Debugf(ctx, "/Configure(ctx, %#+v)", vp)

	return xsync.DoR1(ctx, &r.locker, func() error {
		if r.closed {
			return ErrClosed
		}
		r.running = false
		r.teardownGPU()

		r.viewport = vp
		r.renderArea = vp.ResolvedRenderArea()
		r.distortionActive = vp.DistortionCorrection
		if r.renderArea.Size().IsZero() {
			logger.Debugf(ctx, "render area is empty, staying unconfigured")
			return nil
		}

		if err := r.initGPU(ctx); err != nil {
			r.teardownGPU()
			return err
		}

		var degraded error
		if r.distortionActive {
			if err := r.initDistortion(ctx); err != nil {
				logger.Errorf(ctx, "unable to set up distortion correction, continuing without it: %v", err)
				r.distortionActive = false
				degraded = fmt.Errorf("%w: %w", ErrDistortionDisabled, err)
			}
		}

		r.running = true
		return degraded
	})
}

func (r *Renderer) initGPU(ctx context.Context) error {
	video, err := r.backend.NewVideoProgram(ctx)
	if err != nil {
		return fmt.Errorf("unable to create the video program: %w", err)
	}
	r.video = video

	overlay, err := r.backend.NewOverlay(ctx, r.media)
	if err != nil {
		return fmt.Errorf("unable to create the overlay: %w", err)
	}
	r.overlay = overlay

	r.backend.PrepareScreen(r.renderArea)
	return nil
}

func (r *Renderer) initDistortion(ctx context.Context) (_err error) {
	defer func() {
		if _err != nil {
			r.teardownDistortion()
		}
	}()

	eye := Size{Width: r.renderArea.W / 2, Height: r.renderArea.H}
	offscreen, err := r.backend.NewOffscreenTarget(ctx, eye)
	if err != nil {
		return fmt.Errorf("unable to create the off-screen target %dx%d: %w", eye.Width, eye.Height, err)
	}
	r.offscreen = offscreen

	cfg := DistortionConfig{
		RenderSize: r.renderArea.Size(),
	}
	if r.settings != nil {
		cfg.Calibrated = true
		cfg.Screen = r.settings.DisplayScreen()
		cfg.Lens = r.settings.HMDDistortion()
	}
	distortion, err := r.backend.NewDistortion(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to create the distortion pass: %w", err)
	}
	r.distortion = distortion
	return nil
}

// teardownGPU is safe to call when nothing was allocated.
func (r *Renderer) teardownGPU() {
	if r.video != nil {
		r.video.Delete()
		r.video = nil
	}
	if r.overlay != nil {
		r.overlay.Delete()
		r.overlay = nil
	}
	r.teardownDistortion()
}

func (r *Renderer) teardownDistortion() {
	if r.distortion != nil {
		r.distortion.Delete()
		r.distortion = nil
	}
	if r.offscreen != nil {
		r.offscreen.Delete()
		r.offscreen = nil
	}
}

// AttachDecoder registers the renderer as a consumer of the decoder.
// Only one decoder can be attached at a time.
func (r *Renderer) AttachDecoder(ctx context.Context, decoder Decoder) error {
	logger.Debugf(ctx, "AttachDecoder(ctx, %T)", decoder)
	defer logger.Debugf(ctx, "/AttachDecoder(ctx, %T)", decoder)

	return xsync.DoR1(ctx, &r.locker, func() error {
		if r.closed {
			return ErrClosed
		}
		if decoder == nil {
			return fmt.Errorf("%w: decoder is nil", ErrDecoderBind)
		}
		if r.decoder != nil {
			return ErrDecoderAlreadyAttached
		}

		queue, err := decoder.AddOutputQueue(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecoderBind, err)
		}

		r.decoder = decoder
		r.queue = queue
		r.media = decoder.Media()
		if r.overlay != nil {
			r.overlay.SetMedia(r.media)
		}
		return nil
	})
}

// DetachDecoder releases the buffer on display and removes the output
// queue. A failure to remove the queue is logged and does not prevent
// detaching.
func (r *Renderer) DetachDecoder(ctx context.Context, decoder Decoder) error {
	logger.Debugf(ctx, "DetachDecoder(ctx, %T)", decoder)
	defer logger.Debugf(ctx, "/DetachDecoder(ctx, %T)", decoder)

	return xsync.DoR1(ctx, &r.locker, func() error {
		return r.detachDecoderNoLock(ctx, decoder)
	})
}

func (r *Renderer) detachDecoderNoLock(ctx context.Context, decoder Decoder) error {
	if decoder == nil || decoder != r.decoder {
		return ErrDecoderMismatch
	}

	if err := r.frames.reset(ctx, decoder); err != nil {
		logger.Errorf(ctx, "unable to release the displayed buffer of the detached decoder: %v", err)
	}
	if r.queue != nil {
		if err := decoder.RemoveOutputQueue(ctx, r.queue); err != nil {
			logger.Errorf(ctx, "unable to remove the output queue from the decoder: %v", err)
		}
	}

	r.decoder = nil
	r.queue = nil
	return nil
}

// Render draws the newest decoded frame. lastRender is the time of the
// previous Render call and is used only for the frame-rate log; it may be zero.
//
// The returned error is non-nil if and only if the status is RenderStatusError.
func (r *Renderer) Render(ctx context.Context, lastRender time.Time) (RenderStatus, error) {
	return xsync.DoR2(ctx, &r.locker, func() (RenderStatus, error) {
		if !r.running {
			return RenderStatusNothingRendered, nil
		}
		return r.renderNoLock(ctx, lastRender)
	})
}

func (r *Renderer) renderNoLock(ctx context.Context, lastRender time.Time) (RenderStatus, error) {
	fresh, err := r.frames.drain(ctx, r.decoder, r.queue)
	if err != nil {
		logger.Errorf(ctx, "%v", err)
	}

	buf := fresh
	if buf == nil {
		buf = r.frames.current
	}

	status := RenderStatusNothingRendered
	var result *multierror.Error
	if buf != nil {
		if out := buf.Output(); out != nil {
			if err := r.renderOutput(ctx, out, lastRender); err != nil {
				status = RenderStatusError
				result = multierror.Append(result, err)
			} else {
				status = RenderStatusRendered
			}
		}
	}

	if r.decoder != nil {
		if err := r.frames.settle(ctx, r.decoder, fresh, r.repeatLastFrame); err != nil && status == RenderStatusError {
			result = multierror.Append(result, err)
		}
	}

	if status == RenderStatusError {
		return status, result.ErrorOrNil()
	}
	return status, nil
}

func (r *Renderer) renderOutput(ctx context.Context, out *DecoderOutput, lastRender time.Time) (_err error) {
	viewport := r.renderArea.Size()
	if r.distortionActive {
		viewport.Width /= 2
		r.offscreen.Bind()
		defer func() {
			if _err != nil {
				r.backend.BindScreen(r.renderArea)
			}
		}()
	}

	if err := ValidateGeometry(out, viewport); err != nil {
		return err
	}

	in := ViewInput{
		FrameWidth:  out.Width,
		FrameHeight: out.Height,
		SARWidth:    out.SARWidth,
		SARHeight:   out.SARHeight,
		Viewport:    viewport,
	}
	headTracking := r.viewport.HeadTracking && r.session != nil
	if headTracking {
		in.HeadTracking = true
		in.Head = HeadOrientation{
			Head:      r.session.HeadOrientation(),
			Reference: r.session.HeadReferenceOrientation(),
		}
		in.CameraPan = out.Metadata.CameraPan
		in.CameraTilt = out.Metadata.CameraTilt
		in.HFOV, in.VFOV = r.fieldOfView(out.Metadata)
	}
	transform := SolveViewTransform(in)

	if err := r.video.DrawFrame(ctx, out, out.Format.Resolve(), viewport, &transform); err != nil {
		return fmt.Errorf("unable to draw the frame: %w", err)
	}

	params := OverlayParams{
		Scaled:             out.ScaledSize(),
		Viewport:           viewport,
		Metadata:           out.Metadata,
		DistortionActive:   r.distortionActive,
		HeadTrackingActive: headTracking,
	}
	if headTracking {
		head := transform.Head
		params.Head = &head
	}
	if err := r.overlay.Render(ctx, params); err != nil {
		return fmt.Errorf("unable to draw the overlay: %w", err)
	}

	if r.distortionActive {
		r.backend.BindScreen(r.renderArea)
		if err := r.distortion.Render(ctx, r.offscreen.Texture(), r.offscreen.Size()); err != nil {
			return fmt.Errorf("unable to apply the distortion correction: %w", err)
		}
	}

	newFrameTiming(out, r.session, r.clock.Now(), lastRender).log(ctx)
	return nil
}

// fieldOfView picks the frame's FOV, then the media's; zero values fall
// back to the defaults in SolveViewTransform.
func (r *Renderer) fieldOfView(md FrameMetadata) (h, v float32) {
	h, v = md.HFOV, md.VFOV
	if r.media != nil {
		if h == 0 {
			h = r.media.HFOV
		}
		if v == 0 {
			v = r.media.VFOV
		}
	}
	return h, v
}

// Close detaches the decoder, hands back the displayed buffer and releases
// every GPU resource. The renderer cannot be used afterwards.
func (r *Renderer) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close(ctx)")
	defer logger.Debugf(ctx, "/Close(ctx)")

	return xsync.DoR1(ctx, &r.locker, func() error {
		if r.closed {
			return ErrClosed
		}
		var result *multierror.Error
		if r.decoder != nil {
			result = multierror.Append(result, r.detachDecoderNoLock(ctx, r.decoder))
		}
		r.running = false
		r.teardownGPU()
		r.closed = true
		return result.ErrorOrNil()
	})
}
