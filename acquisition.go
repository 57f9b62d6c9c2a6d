package videorender

import (
	"context"
	"errors"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

// frameAcquirer implements the "newest frame wins" policy: every render
// drains the decoder queue without blocking, hands back every buffer that
// got superseded during the drain, and keeps the newest one on display.
type frameAcquirer struct {
	// current is the buffer on display. It is released only once a newer
	// buffer replaced it, or on detach/close.
	current Buffer
}

// drain dequeues everything the decoder has queued. It returns the newest
// buffer of this call, or nil. A dequeue failure other than ErrQueueEmpty
// stops the drain and is returned wrapped in ErrQueueDrain; the newest
// buffer obtained so far is still returned.
func (a *frameAcquirer) drain(
	ctx context.Context,
	decoder Decoder,
	queue Queue,
) (Buffer, error) {
	if decoder == nil || !decoder.IsConfigured() {
		return nil, nil
	}

	var (
		newest   Buffer
		drainErr error
	)
	for {
		buf, err := decoder.DequeueOutputBuffer(ctx, queue, false)
		if err != nil {
			if !errors.Is(err, ErrQueueEmpty) {
				drainErr = fmt.Errorf("%w: %w", ErrQueueDrain, err)
			}
			break
		}
		if buf == nil {
			break
		}
		if newest != nil {
			releaseBuffer(ctx, decoder, newest)
		}
		newest = buf
	}
	return newest, drainErr
}

// settle runs after the frame was drawn (or failed to draw). The freshly
// drained buffer, if any, replaces the one on display. Without repeat the
// displayed buffer is handed back immediately.
func (a *frameAcquirer) settle(
	ctx context.Context,
	decoder Decoder,
	fresh Buffer,
	repeat bool,
) error {
	var result *multierror.Error
	if fresh != nil && a.current != nil && a.current != fresh {
		result = multierror.Append(result, releaseBuffer(ctx, decoder, a.current))
	}
	if fresh != nil {
		a.current = fresh
	}
	if !repeat && a.current != nil {
		result = multierror.Append(result, releaseBuffer(ctx, decoder, a.current))
		a.current = nil
	}
	return result.ErrorOrNil()
}

// reset hands back the buffer on display.
func (a *frameAcquirer) reset(ctx context.Context, decoder Decoder) error {
	if a.current == nil {
		return nil
	}
	err := releaseBuffer(ctx, decoder, a.current)
	a.current = nil
	return err
}

func releaseBuffer(ctx context.Context, decoder Decoder, buf Buffer) error {
	if err := decoder.ReleaseOutputBuffer(ctx, buf); err != nil {
		logger.Errorf(ctx, "unable to release the buffer: %v", err)
		return fmt.Errorf("unable to release the buffer: %w", err)
	}
	return nil
}
