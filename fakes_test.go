package videorender

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// fakeBuffer is a decoder buffer identified by name.
type fakeBuffer struct {
	name string
	out  *DecoderOutput
}

func (b *fakeBuffer) Output() *DecoderOutput { return b.out }

// fakeDecoder serves buffers from an in-memory queue and records releases.
type fakeDecoder struct {
	lock sync.Mutex

	queued     []Buffer
	dequeueErr error // returned once the queue is empty, instead of ErrQueueEmpty
	addErr     error
	removeErr  error
	releaseErr error
	notReady   bool
	media      *Media

	addCalls    int
	removeCalls int
	released    []string
}

type fakeQueue struct{ id int }

func (d *fakeDecoder) AddOutputQueue(ctx context.Context) (Queue, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.addCalls++
	if d.addErr != nil {
		return nil, d.addErr
	}
	return &fakeQueue{id: d.addCalls}, nil
}

func (d *fakeDecoder) RemoveOutputQueue(ctx context.Context, queue Queue) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.removeCalls++
	return d.removeErr
}

func (d *fakeDecoder) DequeueOutputBuffer(ctx context.Context, queue Queue, blocking bool) (Buffer, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.queued) == 0 {
		if d.dequeueErr != nil {
			return nil, d.dequeueErr
		}
		return nil, ErrQueueEmpty
	}
	buf := d.queued[0]
	d.queued = d.queued[1:]
	return buf, nil
}

func (d *fakeDecoder) ReleaseOutputBuffer(ctx context.Context, buffer Buffer) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.released = append(d.released, buffer.(*fakeBuffer).name)
	return d.releaseErr
}

func (d *fakeDecoder) IsConfigured() bool { return !d.notReady }

func (d *fakeDecoder) Media() *Media { return d.media }

func (d *fakeDecoder) push(bufs ...*fakeBuffer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, b := range bufs {
		d.queued = append(d.queued, b)
	}
}

func (d *fakeDecoder) releasedNames() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.released...)
}

// fakeBackend records every resource it creates and deletes.
type fakeBackend struct {
	videoErr      error
	overlayErr    error
	offscreenErr  error
	distortionErr error

	videos      []*fakeVideo
	overlays    []*fakeOverlay
	targets     []*fakeTarget
	distortions []*fakeDistortion
	distCfgs    []DistortionConfig

	prepared []Rect
	screens  []Rect

	events *[]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{events: &[]string{}}
}

func (b *fakeBackend) PrepareScreen(area Rect) { b.prepared = append(b.prepared, area) }

func (b *fakeBackend) BindScreen(area Rect) {
	b.screens = append(b.screens, area)
	*b.events = append(*b.events, "screen")
}

func (b *fakeBackend) NewVideoProgram(ctx context.Context) (VideoProgram, error) {
	if b.videoErr != nil {
		return nil, b.videoErr
	}
	v := &fakeVideo{events: b.events}
	b.videos = append(b.videos, v)
	return v, nil
}

func (b *fakeBackend) NewOverlay(ctx context.Context, media *Media) (Overlay, error) {
	if b.overlayErr != nil {
		return nil, b.overlayErr
	}
	o := &fakeOverlay{media: media, events: b.events}
	b.overlays = append(b.overlays, o)
	return o, nil
}

func (b *fakeBackend) NewOffscreenTarget(ctx context.Context, size Size) (OffscreenTarget, error) {
	if b.offscreenErr != nil {
		return nil, b.offscreenErr
	}
	if size.IsZero() {
		return nil, errors.New("zero-sized target")
	}
	t := &fakeTarget{size: size, texture: uint32(len(b.targets) + 100), events: b.events}
	b.targets = append(b.targets, t)
	return t, nil
}

func (b *fakeBackend) NewDistortion(ctx context.Context, cfg DistortionConfig) (Distortion, error) {
	b.distCfgs = append(b.distCfgs, cfg)
	if b.distortionErr != nil {
		return nil, b.distortionErr
	}
	d := &fakeDistortion{events: b.events}
	b.distortions = append(b.distortions, d)
	return d, nil
}

func (b *fakeBackend) lastVideo() *fakeVideo {
	if len(b.videos) == 0 {
		return nil
	}
	return b.videos[len(b.videos)-1]
}

type drawCall struct {
	out       *DecoderOutput
	format    PixelFormat
	viewport  Size
	transform ViewTransform
}

type fakeVideo struct {
	draws   []drawCall
	uploads int
	drawErr error
	deleted bool
	events  *[]string
}

func (v *fakeVideo) DrawFrame(ctx context.Context, out *DecoderOutput, format PixelFormat, viewport Size, transform *ViewTransform) error {
	if err := ValidateGeometry(out, viewport); err != nil {
		return err
	}
	if v.drawErr != nil {
		return v.drawErr
	}
	if format != PixelFormatOpaque {
		v.uploads++
	}
	v.draws = append(v.draws, drawCall{out: out, format: format, viewport: viewport, transform: *transform})
	*v.events = append(*v.events, "video")
	return nil
}

func (v *fakeVideo) Delete() { v.deleted = true }

type fakeOverlay struct {
	media     *Media
	params    []OverlayParams
	renderErr error
	deleted   bool
	events    *[]string
}

func (o *fakeOverlay) SetMedia(media *Media) { o.media = media }

func (o *fakeOverlay) Render(ctx context.Context, params OverlayParams) error {
	if o.renderErr != nil {
		return o.renderErr
	}
	o.params = append(o.params, params)
	*o.events = append(*o.events, "overlay")
	return nil
}

func (o *fakeOverlay) Delete() { o.deleted = true }

type fakeTarget struct {
	size    Size
	texture uint32
	binds   int
	deleted bool
	events  *[]string
}

func (t *fakeTarget) Bind() {
	t.binds++
	*t.events = append(*t.events, "offscreen")
}
func (t *fakeTarget) Texture() uint32 { return t.texture }
func (t *fakeTarget) Size() Size      { return t.size }
func (t *fakeTarget) Delete()         { t.deleted = true }

type fakeDistortion struct {
	textures []uint32
	sources  []Size
	deleted  bool
	events   *[]string
}

func (d *fakeDistortion) Render(ctx context.Context, texture uint32, source Size) error {
	d.textures = append(d.textures, texture)
	d.sources = append(d.sources, source)
	*d.events = append(*d.events, "distortion")
	return nil
}

func (d *fakeDistortion) Delete() { d.deleted = true }

type fakeSettings struct {
	screen DisplayScreen
	lens   HMDDistortion
}

func (s fakeSettings) DisplayScreen() DisplayScreen { return s.screen }
func (s fakeSettings) HMDDistortion() HMDDistortion { return s.lens }

type fakeSession struct {
	head, ref mgl32.Quat
}

func (s fakeSession) HeadOrientation() mgl32.Quat          { return s.head }
func (s fakeSession) HeadReferenceOrientation() mgl32.Quat { return s.ref }
func (s fakeSession) CurrentTime() time.Duration           { return 0 }
func (s fakeSession) Duration() time.Duration              { return 0 }

func planarOutput(width, height int) *DecoderOutput {
	stride := width + 32
	return &DecoderOutput{
		Planes: [3][]byte{
			make([]byte, stride*height),
			make([]byte, stride/2*height/2),
			make([]byte, stride/2*height/2),
		},
		Strides:   [3]int{stride, stride / 2, stride / 2},
		Width:     width,
		Height:    height,
		SARWidth:  1,
		SARHeight: 1,
		Format:    PixelFormatYUV420Planar,
	}
}

func newBuffer(name string) *fakeBuffer {
	return &fakeBuffer{name: name, out: planarOutput(64, 48)}
}
