package videorender

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// FriendlyDuration formats d as HH:MM:SS.mmm. Negative durations format as zero.
func FriendlyDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hrs := d / time.Hour
	d -= hrs * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	secs := d / time.Second
	d -= secs * time.Second
	msecs := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hrs, mins, secs, msecs)
}

// frameTiming is the instrumentation of one rendered frame.
type frameTiming struct {
	CurrentTime time.Duration
	Duration    time.Duration

	Decoding  time.Duration // demux output to decoder output
	Rendering time.Duration // decoder output to end of render
	Latency   time.Duration // capture to end of render; 0 if unknown
	FPS       float64       // 0 if unknown
}

func newFrameTiming(
	out *DecoderOutput,
	session Session,
	now time.Time,
	lastRender time.Time,
) frameTiming {
	var t frameTiming
	if session != nil {
		t.CurrentTime = session.CurrentTime()
		t.Duration = session.Duration()
	}
	if !out.DemuxOutputTime.IsZero() && !out.DecoderOutputTime.IsZero() {
		t.Decoding = out.DecoderOutputTime.Sub(out.DemuxOutputTime)
	}
	if !out.DecoderOutputTime.IsZero() {
		t.Rendering = now.Sub(out.DecoderOutputTime)
	}
	if !out.CaptureTime.IsZero() {
		t.Latency = now.Sub(out.CaptureTime)
	}
	if !lastRender.IsZero() {
		if elapsed := now.Sub(lastRender); elapsed > 0 {
			t.FPS = float64(time.Second) / float64(elapsed)
		}
	}
	return t
}

func (t frameTiming) String() string {
	return fmt.Sprintf(
		"%s / %s frame (decoding: %.2fms, rendering: %.2fms, est. latency: %.2fms) render@%.1ffps",
		FriendlyDuration(t.CurrentTime), FriendlyDuration(t.Duration),
		msec(t.Decoding), msec(t.Rendering), msec(t.Latency), t.FPS,
	)
}

func (t frameTiming) log(ctx context.Context) {
	logger.Debugf(ctx, "%s", t)
}

func msec(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
