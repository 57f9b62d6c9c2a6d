// Package session tracks the viewer of a playback: where their head points
// and how far the playback is.
package session

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xaionaro-go/xsync"

	"github.com/go-theft-auto/videorender"
)

// MaxPitch keeps RotateHead away from the gimbal lock.
const MaxPitch = float32(89 * math.Pi / 180)

// Session is safe for concurrent use: input callbacks update the head
// while the render loop reads it.
type Session struct {
	locker xsync.Mutex
	clock  clock.Clock

	head      mgl32.Quat
	reference mgl32.Quat

	started  time.Time
	duration time.Duration
}

var _ videorender.Session = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithClock sets the playback clock.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clock = clk }
}

// WithDuration sets the length of the playback; 0 means unknown.
func WithDuration(d time.Duration) Option {
	return func(s *Session) { s.duration = d }
}

// New starts a session now, looking straight ahead.
func New(opts ...Option) *Session {
	s := &Session{
		clock:     clock.New(),
		head:      mgl32.QuatIdent(),
		reference: mgl32.QuatIdent(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.clock.Now()
	return s
}

// HeadOrientation implements videorender.Session.
func (s *Session) HeadOrientation() mgl32.Quat {
	return xsync.DoR1(context.Background(), &s.locker, func() mgl32.Quat {
		return s.head
	})
}

// HeadReferenceOrientation implements videorender.Session.
func (s *Session) HeadReferenceOrientation() mgl32.Quat {
	return xsync.DoR1(context.Background(), &s.locker, func() mgl32.Quat {
		return s.reference
	})
}

// SetHeadOrientation stores a pose reported by a head tracker.
func (s *Session) SetHeadOrientation(q mgl32.Quat) {
	s.locker.Do(context.Background(), func() {
		s.head = q.Normalize()
	})
}

// RotateHead turns the head by yaw and pitch radians. The pitch is clamped
// to MaxPitch and the yaw wraps around.
func (s *Session) RotateHead(yaw, pitch float32) {
	s.locker.Do(context.Background(), func() {
		e := videorender.QuatToEuler(s.head)
		e.Yaw = wrapAngle(e.Yaw + yaw)
		e.Pitch = mgl32.Clamp(e.Pitch+pitch, -MaxPitch, MaxPitch)
		s.head = videorender.EulerToQuat(e)
	})
}

// Recalibrate makes the current head pose the reference, so the viewer
// looks at the centre of the image again.
func (s *Session) Recalibrate() {
	ctx := context.Background()
	s.locker.Do(ctx, func() {
		s.reference = s.head
	})
	logger.Debugf(ctx, "head reference recalibrated")
}

// Restart resets the playback time to 0.
func (s *Session) Restart() {
	s.locker.Do(context.Background(), func() {
		s.started = s.clock.Now()
	})
}

// SetDuration updates the length of the playback; 0 means unknown.
func (s *Session) SetDuration(d time.Duration) {
	s.locker.Do(context.Background(), func() {
		s.duration = d
	})
}

// CurrentTime implements videorender.Session. It never exceeds a known
// duration.
func (s *Session) CurrentTime() time.Duration {
	return xsync.DoR1(context.Background(), &s.locker, func() time.Duration {
		t := s.clock.Since(s.started)
		if s.duration > 0 && t > s.duration {
			return s.duration
		}
		return t
	})
}

// Duration implements videorender.Session.
func (s *Session) Duration() time.Duration {
	return xsync.DoR1(context.Background(), &s.locker, func() time.Duration {
		return s.duration
	})
}

func wrapAngle(a float32) float32 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
