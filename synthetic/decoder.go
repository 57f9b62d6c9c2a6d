// Package synthetic provides a decoder that produces a color-bar test
// pattern with simulated flight telemetry. It stands in for a real video
// decoder in the example player, the screenshot generator and tests.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/xsync"

	"github.com/go-theft-auto/videorender"
)

var (
	// ErrUnknownQueue is returned for a queue that was removed or never added.
	ErrUnknownQueue = errors.New("unknown output queue")
	// ErrUnknownBuffer is returned when releasing a buffer that is not outstanding.
	ErrUnknownBuffer = errors.New("buffer is not outstanding")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("decoder is closed")
)

// Config describes the produced stream.
type Config struct {
	Width, Height int
	// Padding is added to every row, so strides exceed the width.
	Padding             int
	SARWidth, SARHeight int
	Format              videorender.PixelFormat
	FPS                 float64
	// QueueDepth is the number of frames a queue holds before the oldest
	// one is dropped.
	QueueDepth int
	Media      videorender.Media
}

// DefaultConfig is a 720p30 planar stream.
func DefaultConfig() Config {
	return Config{
		Width:      1280,
		Height:     720,
		Padding:    64,
		SARWidth:   1,
		SARHeight:  1,
		Format:     videorender.PixelFormatYUV420Planar,
		FPS:        30,
		QueueDepth: 4,
		Media: videorender.Media{
			Name: "test pattern",
			HFOV: 78,
			VFOV: 49,
		},
	}
}

// Validate reports every invalid value at once.
func (cfg Config) Validate() error {
	var result *multierror.Error
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		result = multierror.Append(result, fmt.Errorf("frame size %dx%d must be positive and even", cfg.Width, cfg.Height))
	}
	if cfg.Padding < 0 || cfg.Padding%2 != 0 {
		result = multierror.Append(result, fmt.Errorf("padding %d must be a non-negative even number", cfg.Padding))
	}
	if cfg.SARWidth <= 0 || cfg.SARHeight <= 0 {
		result = multierror.Append(result, fmt.Errorf("sample aspect ratio %d:%d must be positive", cfg.SARWidth, cfg.SARHeight))
	}
	if cfg.Format == videorender.PixelFormatOpaque {
		result = multierror.Append(result, fmt.Errorf("pixel format %s has no CPU planes to generate", cfg.Format))
	}
	if cfg.FPS <= 0 {
		result = multierror.Append(result, fmt.Errorf("frame rate %v must be positive", cfg.FPS))
	}
	if cfg.QueueDepth <= 0 {
		result = multierror.Append(result, fmt.Errorf("queue depth %d must be positive", cfg.QueueDepth))
	}
	return result.ErrorOrNil()
}

// Buffer is one produced frame.
type Buffer struct {
	index uint64
	out   videorender.DecoderOutput
}

var _ videorender.Buffer = (*Buffer)(nil)

// Output implements videorender.Buffer.
func (b *Buffer) Output() *videorender.DecoderOutput {
	return &b.out
}

// Index is the position of the frame in the stream.
func (b *Buffer) Index() uint64 {
	return b.index
}

type queue struct {
	frames chan *Buffer
}

// Stats counts what happened to the produced frames and how many output
// queues are registered.
type Stats struct {
	Produced    uint64
	Dropped     uint64
	Outstanding int
	Queues      int
}

// Decoder produces test-pattern frames into every output queue. Every
// buffer it hands out stays outstanding until released.
type Decoder struct {
	locker xsync.Mutex
	cfg    Config
	clock  clock.Clock

	queues      map[*queue]struct{}
	outstanding map[*Buffer]struct{}
	free        []*Buffer
	started     time.Time
	produced    uint64
	dropped     uint64
	closed      bool

	cancel context.CancelFunc
	done   chan struct{}
}

var _ videorender.Decoder = (*Decoder)(nil)

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the clock that paces the frames and stamps them.
func WithClock(clk clock.Clock) Option {
	return func(d *Decoder) { d.clock = clk }
}

// New validates cfg and returns an idle decoder; call Start to produce
// frames on a timer, or Produce to step it by hand.
func New(cfg Config, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}
	d := &Decoder{
		cfg:         cfg,
		clock:       clock.New(),
		queues:      map[*queue]struct{}{},
		outstanding: map[*Buffer]struct{}{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.started = d.clock.Now()
	return d, nil
}

// Config returns the stream description.
func (d *Decoder) Config() Config {
	return d.cfg
}

// FrameInterval is the time between two frames.
func (d *Decoder) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / d.cfg.FPS)
}

// Start produces a frame every FrameInterval until ctx is done or the
// decoder is closed.
func (d *Decoder) Start(ctx context.Context) error {
	logger.Debugf(ctx, "Start(ctx)")
	defer logger.Debugf(ctx, "/Start(ctx)")

	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.closed {
			return ErrClosed
		}
		if d.cancel != nil {
			return errors.New("already started")
		}
		ctx, cancel := context.WithCancel(ctx)
		d.cancel = cancel
		d.done = make(chan struct{})
		go d.loop(ctx, d.done)
		return nil
	})
}

func (d *Decoder) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := d.clock.Ticker(d.FrameInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Produce(ctx); err != nil {
				if !errors.Is(err, ErrClosed) {
					logger.Errorf(ctx, "unable to produce a frame: %v", err)
				}
				return
			}
		}
	}
}

// Produce generates the next frame and queues a buffer of it on every
// output queue. A full queue drops and recycles its oldest frame.
func (d *Decoder) Produce(ctx context.Context) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.closed {
			return ErrClosed
		}
		index := d.produced
		d.produced++
		now := d.clock.Now()
		meta := Telemetry(time.Duration(index)*d.FrameInterval(), d.cfg.Media)

		for q := range d.queues {
			buf := d.newBufferNoLock(index)
			buf.out.Metadata = meta
			buf.out.CaptureTime = now.Add(-2 * d.FrameInterval())
			buf.out.DemuxOutputTime = now.Add(-d.FrameInterval() / 4)
			buf.out.DecoderOutputTime = now
			d.pushNoLock(ctx, q, buf)
		}
		return nil
	})
}

func (d *Decoder) newBufferNoLock(index uint64) *Buffer {
	var buf *Buffer
	if n := len(d.free); n > 0 {
		buf = d.free[n-1]
		d.free = d.free[:n-1]
	} else {
		buf = &Buffer{}
	}
	buf.index = index
	allocate(&buf.out, d.cfg)
	paint(&buf.out, index)
	d.outstanding[buf] = struct{}{}
	return buf
}

func (d *Decoder) pushNoLock(ctx context.Context, q *queue, buf *Buffer) {
	for {
		select {
		case q.frames <- buf:
			return
		default:
		}
		select {
		case old := <-q.frames:
			d.dropped++
			logger.Tracef(ctx, "queue full, dropping frame %d", old.index)
			d.recycleNoLock(old)
		default:
		}
	}
}

func (d *Decoder) recycleNoLock(buf *Buffer) {
	delete(d.outstanding, buf)
	if len(d.free) < d.cfg.QueueDepth*2 {
		d.free = append(d.free, buf)
	}
}

// AddOutputQueue implements videorender.Decoder.
func (d *Decoder) AddOutputQueue(ctx context.Context) (videorender.Queue, error) {
	return xsync.DoR2(ctx, &d.locker, func() (videorender.Queue, error) {
		if d.closed {
			return nil, ErrClosed
		}
		q := &queue{frames: make(chan *Buffer, d.cfg.QueueDepth)}
		d.queues[q] = struct{}{}
		return q, nil
	})
}

// RemoveOutputQueue implements videorender.Decoder. Frames still queued
// are released.
func (d *Decoder) RemoveOutputQueue(ctx context.Context, handle videorender.Queue) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		q, ok := handle.(*queue)
		if !ok {
			return ErrUnknownQueue
		}
		if _, ok := d.queues[q]; !ok {
			return ErrUnknownQueue
		}
		d.removeQueueNoLock(q)
		return nil
	})
}

func (d *Decoder) removeQueueNoLock(q *queue) {
	delete(d.queues, q)
	for {
		select {
		case buf := <-q.frames:
			d.recycleNoLock(buf)
		default:
			close(q.frames)
			return
		}
	}
}

// DequeueOutputBuffer implements videorender.Decoder.
func (d *Decoder) DequeueOutputBuffer(ctx context.Context, handle videorender.Queue, blocking bool) (videorender.Buffer, error) {
	q, ok := handle.(*queue)
	if !ok {
		return nil, ErrUnknownQueue
	}
	known := xsync.DoR1(ctx, &d.locker, func() bool {
		_, ok := d.queues[q]
		return ok
	})
	if !known {
		return nil, ErrUnknownQueue
	}

	if !blocking {
		select {
		case buf, ok := <-q.frames:
			return d.dequeued(buf, ok)
		default:
			return nil, videorender.ErrQueueEmpty
		}
	}

	select {
	case buf, ok := <-q.frames:
		return d.dequeued(buf, ok)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Decoder) dequeued(buf *Buffer, ok bool) (videorender.Buffer, error) {
	if !ok {
		return nil, ErrUnknownQueue
	}
	return buf, nil
}

// ReleaseOutputBuffer implements videorender.Decoder.
func (d *Decoder) ReleaseOutputBuffer(ctx context.Context, handle videorender.Buffer) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		buf, ok := handle.(*Buffer)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnknownBuffer, handle)
		}
		if _, ok := d.outstanding[buf]; !ok {
			return fmt.Errorf("%w: frame %d", ErrUnknownBuffer, buf.index)
		}
		d.recycleNoLock(buf)
		return nil
	})
}

// IsConfigured implements videorender.Decoder.
func (d *Decoder) IsConfigured() bool {
	return xsync.DoR1(context.Background(), &d.locker, func() bool {
		return !d.closed
	})
}

// Media implements videorender.Decoder.
func (d *Decoder) Media() *videorender.Media {
	media := d.cfg.Media
	return &media
}

// Duration is how long the decoder has been producing.
func (d *Decoder) Duration() time.Duration {
	return d.clock.Since(d.started)
}

// Stats returns the frame counters.
func (d *Decoder) Stats() Stats {
	return xsync.DoR1(context.Background(), &d.locker, func() Stats {
		return Stats{
			Produced:    d.produced,
			Dropped:     d.dropped,
			Outstanding: len(d.outstanding),
			Queues:      len(d.queues),
		}
	})
}

// Close stops production and removes every queue. Buffers held by
// consumers stay outstanding until they are released.
func (d *Decoder) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close(ctx)")
	defer logger.Debugf(ctx, "/Close(ctx)")

	var done chan struct{}
	err := xsync.DoR1(ctx, &d.locker, func() error {
		if d.closed {
			return ErrClosed
		}
		d.closed = true
		if d.cancel != nil {
			d.cancel()
			done = d.done
		}
		for q := range d.queues {
			d.removeQueueNoLock(q)
		}
		return nil
	})
	if done != nil {
		<-done
	}
	return err
}
