package videorender

import "errors"

var (
	// ErrInitialization is returned when a shader, program or GPU resource
	// could not be created. The affected sub-renderer must not be used.
	ErrInitialization = errors.New("GPU initialization failed")

	// ErrInvalidGeometry is returned for zero-sized frame, aspect ratio,
	// viewport or stride values. The frame is not drawn.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrDecoderBind is returned when the decoder refuses an output queue.
	ErrDecoderBind = errors.New("unable to bind to the decoder")

	// ErrDecoderAlreadyAttached is returned when a second decoder is attached.
	ErrDecoderAlreadyAttached = errors.New("a decoder is already attached")

	// ErrDecoderMismatch is returned when detaching a decoder that is not attached.
	ErrDecoderMismatch = errors.New("the decoder is not the attached one")

	// ErrQueueEmpty is returned by Decoder.DequeueOutputBuffer when nothing is queued.
	ErrQueueEmpty = errors.New("output queue is empty")

	// ErrQueueDrain wraps any other dequeue failure.
	ErrQueueDrain = errors.New("unable to drain the output queue")

	// ErrDistortionDisabled is returned by Configure when the HMD pass could
	// not be set up. The renderer stays configured without it.
	ErrDistortionDisabled = errors.New("distortion correction disabled")

	// ErrNotConfigured is returned by operations that need a configured renderer.
	ErrNotConfigured = errors.New("renderer is not configured")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("renderer is closed")
)
