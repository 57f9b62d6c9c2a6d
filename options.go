package videorender

import "github.com/benbjohnson/clock"

// Option configures a Renderer instance.
type Option func(*Renderer)

// WithSettings sets the calibration source for the distortion pass.
// Without it the pass uses its defaults.
func WithSettings(settings Settings) Option {
	return func(r *Renderer) { r.settings = settings }
}

// WithSession sets the source of head orientation and playback time.
// Head tracking has no effect without a session.
func WithSession(session Session) Option {
	return func(r *Renderer) { r.session = session }
}

// WithClock sets the clock used for frame timing instrumentation.
func WithClock(clk clock.Clock) Option {
	return func(r *Renderer) { r.clock = clk }
}

// WithRepeatLastFrame controls whether the last frame is drawn again when
// the decoder has nothing new. Enabled by default.
func WithRepeatLastFrame(repeat bool) Option {
	return func(r *Renderer) { r.repeatLastFrame = repeat }
}
