package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-theft-auto/videorender"
)

func smallConfig(format videorender.PixelFormat) Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 32
	cfg.Padding = 16
	cfg.Format = format
	cfg.QueueDepth = 2
	return cfg
}

func newDecoder(t *testing.T, cfg Config) (*Decoder, *clock.Mock) {
	clk := clock.NewMock()
	d, err := New(cfg, WithClock(clk))
	require.NoError(t, err)
	return d, clk
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := Config{Width: 3, Height: 2, Padding: -1, Format: videorender.PixelFormatOpaque}
	err := cfg.Validate()
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 6)

	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRGBToYUV(t *testing.T) {
	for _, c := range Bars {
		y, u, v := RGBToYUV(c[0], c[1], c[2])
		r, g, b := videorender.YUVToRGB(float32(y)/255, float32(u)/255, float32(v)/255)
		assert.InDelta(t, c[0], r, 3.0/255)
		assert.InDelta(t, c[1], g, 3.0/255)
		assert.InDelta(t, c[2], b, 3.0/255)
	}
}

func TestPattern(t *testing.T) {
	for _, format := range []videorender.PixelFormat{
		videorender.PixelFormatYUV420Planar,
		videorender.PixelFormatYUV420SemiPlanar,
	} {
		t.Run(format.String(), func(t *testing.T) {
			cfg := smallConfig(format)
			var out videorender.DecoderOutput
			allocate(&out, cfg)
			paint(&out, 1)

			assert.Equal(t, 80, out.Strides[0])
			require.NoError(t, videorender.ValidateGeometry(&out, videorender.Size{Width: 640, Height: 480}))

			barW := cfg.Width / len(Bars)
			for i, c := range Bars {
				x := i*barW + barW/2
				if x == CursorAt(1, cfg.Width) {
					x++
				}
				r, g, b, ok := out.RGBAt(x, 10)
				require.True(t, ok)
				assert.InDelta(t, c[0], r, 3.0/255, "bar %d", i)
				assert.InDelta(t, c[1], g, 3.0/255, "bar %d", i)
				assert.InDelta(t, c[2], b, 3.0/255, "bar %d", i)
			}

			yy, _, _, ok := out.SampleYUV(CursorAt(1, cfg.Width), 5)
			require.True(t, ok)
			assert.Equal(t, float32(1), yy)
		})
	}
}

func TestTelemetry(t *testing.T) {
	media := DefaultConfig().Media
	md := Telemetry(0, media)
	assert.Equal(t, 100, md.BatteryPercentage)
	assert.Equal(t, media.HFOV, md.HFOV)
	assert.InDelta(t, 50, md.Altitude, 1e-4)
	assert.Zero(t, md.DroneAttitude.Roll)

	md = Telemetry(time.Hour, media)
	assert.Equal(t, 0, md.BatteryPercentage)
	assert.LessOrEqual(t, md.DroneAttitude.Yaw, float32(3.1416))
}

func TestProduceWithoutQueues(t *testing.T) {
	ctx := context.Background()
	d, _ := newDecoder(t, smallConfig(videorender.PixelFormatYUV420Planar))
	require.NoError(t, d.Produce(ctx))
	assert.Equal(t, Stats{Produced: 1}, d.Stats())
}

func TestQueueDropsOldest(t *testing.T) {
	ctx := context.Background()
	d, clk := newDecoder(t, smallConfig(videorender.PixelFormatYUV420Planar))
	q, err := d.AddOutputQueue(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Produce(ctx))
		clk.Add(d.FrameInterval())
	}
	assert.Equal(t, Stats{Produced: 5, Dropped: 3, Outstanding: 2, Queues: 1}, d.Stats())

	first, err := d.DequeueOutputBuffer(ctx, q, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), first.(*Buffer).Index())
	second, err := d.DequeueOutputBuffer(ctx, q, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), second.(*Buffer).Index())
	assert.False(t, second.Output().DecoderOutputTime.IsZero())

	_, err = d.DequeueOutputBuffer(ctx, q, false)
	assert.ErrorIs(t, err, videorender.ErrQueueEmpty)

	require.NoError(t, d.ReleaseOutputBuffer(ctx, first))
	require.NoError(t, d.ReleaseOutputBuffer(ctx, second))
	assert.Zero(t, d.Stats().Outstanding)

	assert.ErrorIs(t, d.ReleaseOutputBuffer(ctx, first), ErrUnknownBuffer)
}

func TestRemoveOutputQueue(t *testing.T) {
	ctx := context.Background()
	d, _ := newDecoder(t, smallConfig(videorender.PixelFormatYUV420Planar))
	q, err := d.AddOutputQueue(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Produce(ctx))
	assert.Equal(t, 1, d.Stats().Outstanding)

	require.NoError(t, d.RemoveOutputQueue(ctx, q))
	assert.Zero(t, d.Stats().Outstanding)

	assert.ErrorIs(t, d.RemoveOutputQueue(ctx, q), ErrUnknownQueue)
	_, err = d.DequeueOutputBuffer(ctx, q, false)
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestBlockingDequeue(t *testing.T) {
	ctx := context.Background()
	d, _ := newDecoder(t, smallConfig(videorender.PixelFormatYUV420Planar))
	q, err := d.AddOutputQueue(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = d.Produce(ctx)
	}()
	buf, err := d.DequeueOutputBuffer(ctx, q, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), buf.(*Buffer).Index())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.DequeueOutputBuffer(cancelled, q, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartAndClose(t *testing.T) {
	ctx := context.Background()
	d, clk := newDecoder(t, smallConfig(videorender.PixelFormatYUV420SemiPlanar))
	_, err := d.AddOutputQueue(ctx)
	require.NoError(t, err)

	require.NoError(t, d.Start(ctx))
	require.Error(t, d.Start(ctx))

	require.Eventually(t, func() bool {
		clk.Add(d.FrameInterval())
		return d.Stats().Produced >= 3
	}, time.Second, time.Millisecond)

	require.NoError(t, d.Close(ctx))
	assert.False(t, d.IsConfigured())
	assert.Zero(t, d.Stats().Outstanding)
	assert.ErrorIs(t, d.Close(ctx), ErrClosed)
	assert.ErrorIs(t, d.Produce(ctx), ErrClosed)
	_, err = d.AddOutputQueue(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMedia(t *testing.T) {
	d, _ := newDecoder(t, DefaultConfig())
	m := d.Media()
	require.NotNil(t, m)
	assert.Equal(t, "test pattern", m.Name)

	// callers get a copy
	m.Name = "changed"
	assert.Equal(t, "test pattern", d.Media().Name)
}
