package videorender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullHD() Viewport {
	return Viewport{Window: Size{Width: 1920, Height: 1080}}
}

func newTestRenderer(t *testing.T, backend *fakeBackend, vp Viewport, opts ...Option) *Renderer {
	t.Helper()
	opts = append([]Option{WithClock(clock.NewMock())}, opts...)
	r := New(backend, opts...)
	require.NoError(t, r.Configure(context.Background(), vp))
	return r
}

func TestRenderWithoutDecoder(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	require.True(t, r.Configured())
	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusNothingRendered, status)
	assert.Len(t, backend.prepared, 1)
	assert.Empty(t, backend.lastVideo().draws)
}

func TestConfigureZeroArea(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := New(backend)

	for _, vp := range []Viewport{
		{},
		{Window: Size{Width: 800}},
		{Window: Size{Width: 800, Height: 600}, RenderArea: Rect{W: 0, H: -1}},
	} {
		require.NoError(t, r.Configure(ctx, vp))
		assert.False(t, r.Configured())
	}
	assert.Empty(t, backend.videos)

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusNothingRendered, status)

	_, err = r.RenderArea()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfigureRebuildsEverything(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, Viewport{
		Window:               Size{Width: 1920, Height: 1080},
		DistortionCorrection: true,
	})

	require.NoError(t, r.Configure(ctx, fullHD()))
	require.Len(t, backend.videos, 2)
	assert.True(t, backend.videos[0].deleted)
	assert.True(t, backend.overlays[0].deleted)
	assert.True(t, backend.targets[0].deleted)
	assert.True(t, backend.distortions[0].deleted)
	assert.False(t, backend.videos[1].deleted)
	assert.False(t, r.DistortionActive())
}

func TestConfigureOverlayFailure(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := New(backend)

	backend.overlayErr = ErrInitialization
	err := r.Configure(ctx, fullHD())
	require.ErrorIs(t, err, ErrInitialization)
	assert.False(t, r.Configured())
	require.Len(t, backend.videos, 1)
	assert.True(t, backend.videos[0].deleted)
}

func TestRenderDropsStaleFrames(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))

	a, b, c := newBuffer("A"), newBuffer("B"), newBuffer("C")
	dec.push(a, b, c)

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, RenderStatusRendered, status)
	assert.Equal(t, []string{"A", "B"}, dec.releasedNames())

	draws := backend.lastVideo().draws
	require.Len(t, draws, 1)
	assert.Same(t, c.out, draws[0].out)

	// nothing new: C is drawn again and stays on display
	status, err = r.Render(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, RenderStatusRendered, status)
	assert.Equal(t, []string{"A", "B"}, dec.releasedNames())
	require.Len(t, backend.lastVideo().draws, 2)
	assert.Same(t, c.out, backend.lastVideo().draws[1].out)

	dec.push(newBuffer("D"))
	_, err = r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, dec.releasedNames())

	require.NoError(t, r.DetachDecoder(ctx, dec))
	assert.Equal(t, []string{"A", "B", "C", "D"}, dec.releasedNames())
	assert.Equal(t, 1, dec.removeCalls)
}

func TestRenderWithoutRepeat(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD(), WithRepeatLastFrame(false))

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusRendered, status)
	assert.Equal(t, []string{"A"}, dec.releasedNames())

	status, err = r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusNothingRendered, status)
	assert.Equal(t, []string{"A"}, dec.releasedNames())
}

func TestRenderDecoderNotConfigured(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{notReady: true}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusNothingRendered, status)
	assert.Empty(t, dec.releasedNames())
}

func TestRenderQueueDrainFailure(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{dequeueErr: errors.New("pool exhausted")}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))

	// the drain failure is logged and the frame obtained so far is drawn
	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusRendered, status)
}

func TestRenderInvalidGeometry(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))

	for _, mutate := range []func(*DecoderOutput){
		func(o *DecoderOutput) { o.Width = 0 },
		func(o *DecoderOutput) { o.Height = 0 },
		func(o *DecoderOutput) { o.SARWidth = 0 },
		func(o *DecoderOutput) { o.SARHeight = 0 },
		func(o *DecoderOutput) { o.Strides[0] = 0 },
		func(o *DecoderOutput) { o.Strides[0] = o.Width - 1 },
	} {
		buf := newBuffer("bad")
		mutate(buf.out)
		dec.push(buf)

		status, err := r.Render(ctx, time.Time{})
		assert.Equal(t, RenderStatusError, status)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	}

	assert.Empty(t, backend.lastVideo().draws)
	assert.Zero(t, backend.lastVideo().uploads)
	assert.Empty(t, backend.overlays[0].params)

	// every bad buffer but the one on display went back to the decoder
	assert.Len(t, dec.releasedNames(), 5)
	require.NoError(t, r.Close(ctx))
	assert.Len(t, dec.releasedNames(), 6)
}

func TestRenderStageFailureReleasesBuffers(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD(), WithRepeatLastFrame(false))

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	backend.overlays[0].renderErr = errors.New("boom")

	dec.push(newBuffer("A"), newBuffer("B"))
	status, err := r.Render(ctx, time.Time{})
	assert.Equal(t, RenderStatusError, status)
	require.Error(t, err)
	assert.Equal(t, []string{"A", "B"}, dec.releasedNames())
}

func TestRenderReleaseFailureOnlyReportedOnError(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD(), WithRepeatLastFrame(false))

	releaseErr := errors.New("release failed")
	dec := &fakeDecoder{releaseErr: releaseErr}
	require.NoError(t, r.AttachDecoder(ctx, dec))

	dec.push(newBuffer("A"))
	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusRendered, status)

	backend.lastVideo().drawErr = errors.New("draw failed")
	dec.push(newBuffer("B"))
	status, err = r.Render(ctx, time.Time{})
	assert.Equal(t, RenderStatusError, status)
	assert.ErrorIs(t, err, releaseErr)
}

func TestAttachDecoder(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	media := &Media{Name: "cam0", HFOV: 90, VFOV: 60}
	first := &fakeDecoder{media: media}
	require.NoError(t, r.AttachDecoder(ctx, first))
	assert.Same(t, media, backend.overlays[0].media)

	second := &fakeDecoder{}
	err := r.AttachDecoder(ctx, second)
	require.ErrorIs(t, err, ErrDecoderAlreadyAttached)
	assert.Zero(t, second.addCalls)

	// the first binding still serves frames
	first.push(newBuffer("A"))
	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusRendered, status)

	require.ErrorIs(t, r.AttachDecoder(ctx, nil), ErrDecoderBind)
}

func TestAttachDecoderBindFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, newFakeBackend(), fullHD())

	dec := &fakeDecoder{addErr: errors.New("no more queues")}
	require.ErrorIs(t, r.AttachDecoder(ctx, dec), ErrDecoderBind)

	// the failed attach left nothing bound
	require.NoError(t, r.AttachDecoder(ctx, &fakeDecoder{}))
}

func TestMediaSurvivesReconfigure(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	media := &Media{Name: "cam0"}
	require.NoError(t, r.AttachDecoder(ctx, &fakeDecoder{media: media}))
	require.NoError(t, r.Configure(ctx, fullHD()))
	require.Len(t, backend.overlays, 2)
	assert.Same(t, media, backend.overlays[1].media)
}

func TestDetachDecoder(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, newFakeBackend(), fullHD())

	dec := &fakeDecoder{removeErr: errors.New("already gone")}
	require.ErrorIs(t, r.DetachDecoder(ctx, dec), ErrDecoderMismatch)

	require.NoError(t, r.AttachDecoder(ctx, dec))
	require.ErrorIs(t, r.DetachDecoder(ctx, &fakeDecoder{}), ErrDecoderMismatch)

	// a queue removal failure does not block detaching
	require.NoError(t, r.DetachDecoder(ctx, dec))
	assert.Equal(t, 1, dec.removeCalls)
	require.ErrorIs(t, r.DetachDecoder(ctx, dec), ErrDecoderMismatch)
	require.NoError(t, r.AttachDecoder(ctx, &fakeDecoder{}))
}

func TestDistortionPass(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	settings := fakeSettings{
		screen: DisplayScreen{DPIX: 401, DPIY: 401, DeviceMargin: 4},
		lens:   HMDDistortion{Model: HMDModelCockpitGlasses, IPD: 63, Scale: 1},
	}
	r := newTestRenderer(t, backend, Viewport{
		Window:               Size{Width: 1920, Height: 1080},
		DistortionCorrection: true,
	}, WithSettings(settings))
	require.True(t, r.DistortionActive())

	require.Len(t, backend.targets, 1)
	assert.Equal(t, Size{Width: 960, Height: 1080}, backend.targets[0].size)
	require.Len(t, backend.distCfgs, 1)
	cfg := backend.distCfgs[0]
	assert.True(t, cfg.Calibrated)
	assert.Equal(t, Size{Width: 1920, Height: 1080}, cfg.RenderSize)
	assert.Equal(t, settings.screen, cfg.Screen)
	assert.Equal(t, settings.lens, cfg.Lens)

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))
	*backend.events = nil

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, RenderStatusRendered, status)

	assert.Equal(t, []string{"offscreen", "video", "overlay", "screen", "distortion"}, *backend.events)
	assert.Equal(t, Size{Width: 960, Height: 1080}, backend.lastVideo().draws[0].viewport)
	assert.True(t, backend.overlays[0].params[0].DistortionActive)
	assert.Equal(t, []uint32{backend.targets[0].texture}, backend.distortions[0].textures)
	assert.Equal(t, Rect{W: 1920, H: 1080}, backend.screens[len(backend.screens)-1])
}

func TestDistortionUncalibrated(t *testing.T) {
	backend := newFakeBackend()
	newTestRenderer(t, backend, Viewport{
		Window:               Size{Width: 1280, Height: 720},
		DistortionCorrection: true,
	})
	require.Len(t, backend.distCfgs, 1)
	assert.False(t, backend.distCfgs[0].Calibrated)
}

func TestDistortionDegrades(t *testing.T) {
	ctx := context.Background()

	for name, setup := range map[string]func(*fakeBackend){
		"offscreen":  func(b *fakeBackend) { b.offscreenErr = ErrInitialization },
		"distortion": func(b *fakeBackend) { b.distortionErr = ErrInitialization },
	} {
		t.Run(name, func(t *testing.T) {
			backend := newFakeBackend()
			setup(backend)
			r := New(backend)

			err := r.Configure(ctx, Viewport{
				Window:               Size{Width: 1920, Height: 1080},
				DistortionCorrection: true,
			})
			require.ErrorIs(t, err, ErrDistortionDisabled)
			require.ErrorIs(t, err, ErrInitialization)
			assert.True(t, r.Configured())
			assert.False(t, r.DistortionActive())
			for _, target := range backend.targets {
				assert.True(t, target.deleted)
			}

			dec := &fakeDecoder{}
			require.NoError(t, r.AttachDecoder(ctx, dec))
			dec.push(newBuffer("A"))
			status, err := r.Render(ctx, time.Time{})
			require.NoError(t, err)
			assert.Equal(t, RenderStatusRendered, status)
			assert.Equal(t, Size{Width: 1920, Height: 1080}, backend.lastVideo().draws[0].viewport)
		})
	}
}

func TestRenderHeadTracking(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	session := fakeSession{
		head: EulerToQuat(Euler{Yaw: 0.1}),
		ref:  mgl32.QuatIdent(),
	}
	r := newTestRenderer(t, backend, Viewport{
		Window:       Size{Width: 1920, Height: 1080},
		HeadTracking: true,
	}, WithSession(session))

	dec := &fakeDecoder{media: &Media{HFOV: 90, VFOV: 60}}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	buf := newBuffer("A")
	buf.out.Width, buf.out.Height = 1920, 1080
	buf.out.Strides = [3]int{1920, 960, 960}
	dec.push(buf)

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, RenderStatusRendered, status)

	transform := backend.lastVideo().draws[0].transform
	// a 0.1 rad turn over a 90 degree wide full-width frame
	assert.InDelta(t, 0.1/mgl32.DegToRad(90)*2, transform.DeltaX, 1e-4)
	assert.InDelta(t, 0, transform.DeltaY, 1e-4)

	params := backend.overlays[0].params[0]
	assert.True(t, params.HeadTrackingActive)
	require.NotNil(t, params.Head)
	assert.InDelta(t, 0.1, params.Head.Yaw, 1e-4)
}

func TestRenderHeadTrackingWithoutSession(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, Viewport{
		Window:       Size{Width: 1920, Height: 1080},
		HeadTracking: true,
	})

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))

	_, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.False(t, backend.overlays[0].params[0].HeadTrackingActive)
	assert.Nil(t, backend.overlays[0].params[0].Head)
	assert.Zero(t, backend.lastVideo().draws[0].transform.DeltaX)
}

func TestRenderFormatSelection(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))

	for _, format := range []PixelFormat{
		PixelFormatUndefined,
		PixelFormatYUV420Planar,
		PixelFormatYUV420SemiPlanar,
		PixelFormatOpaque,
	} {
		buf := newBuffer(format.String())
		buf.out.Format = format
		dec.push(buf)
		_, err := r.Render(ctx, time.Time{})
		require.NoError(t, err)
	}

	draws := backend.lastVideo().draws
	require.Len(t, draws, 4)
	assert.Equal(t, PixelFormatYUV420Planar, draws[0].format)
	assert.Equal(t, PixelFormatYUV420Planar, draws[1].format)
	assert.Equal(t, PixelFormatYUV420SemiPlanar, draws[2].format)
	assert.Equal(t, PixelFormatOpaque, draws[3].format)
	assert.Equal(t, 3, backend.lastVideo().uploads)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, fullHD())

	dec := &fakeDecoder{}
	require.NoError(t, r.AttachDecoder(ctx, dec))
	dec.push(newBuffer("A"))
	_, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)

	area, err := r.RenderArea()
	require.NoError(t, err)
	assert.Equal(t, Rect{W: 1920, H: 1080}, area)

	require.NoError(t, r.Close(ctx))
	assert.Equal(t, []string{"A"}, dec.releasedNames())
	assert.Equal(t, 1, dec.removeCalls)
	assert.True(t, backend.videos[0].deleted)
	assert.True(t, backend.overlays[0].deleted)
	assert.False(t, r.Configured())

	require.ErrorIs(t, r.Close(ctx), ErrClosed)
	require.ErrorIs(t, r.Configure(ctx, fullHD()), ErrClosed)
	require.ErrorIs(t, r.AttachDecoder(ctx, &fakeDecoder{}), ErrClosed)

	status, err := r.Render(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, RenderStatusNothingRendered, status)
}
