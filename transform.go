package videorender

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Field of view used when neither the frame nor the media reports one.
const (
	DefaultHFOV = 78.0 // degrees
	DefaultVFOV = 49.0 // degrees
)

// ViewInput holds everything SolveViewTransform needs.
type ViewInput struct {
	FrameWidth, FrameHeight int
	SARWidth, SARHeight     int
	Viewport                Size

	// The fields below are ignored unless HeadTracking is set.
	HeadTracking bool
	Head         HeadOrientation
	CameraPan    float32 // radians
	CameraTilt   float32 // radians
	HFOV, VFOV   float32 // degrees; 0 selects the defaults
}

// ViewTransform is the quad and the matrix used to draw a frame.
type ViewTransform struct {
	// Fraction of the viewport covered by the frame, in NDC half-extents.
	WidthRatio, HeightRatio float32

	// Quad corners as a triangle strip: bottom-left, bottom-right,
	// top-left, top-right.
	Vertices [8]float32

	// Matrix maps a vertex to clip space as Matrix * (x, y, 0, 1).
	Matrix mgl32.Mat4

	DeltaX, DeltaY float32
	Roll           float32
	Head           Euler // orientation delta, zero without head tracking
}

// ValidateGeometry checks that none of the values the transform divides by
// is zero and that the primary plane rows are at least one frame wide.
func ValidateGeometry(out *DecoderOutput, viewport Size) error {
	switch {
	case out == nil:
		return fmt.Errorf("%w: no frame", ErrInvalidGeometry)
	case out.Width <= 0 || out.Height <= 0:
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidGeometry, out.Width, out.Height)
	case out.SARWidth <= 0 || out.SARHeight <= 0:
		return fmt.Errorf("%w: sample aspect ratio %d:%d", ErrInvalidGeometry, out.SARWidth, out.SARHeight)
	case viewport.IsZero():
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidGeometry, viewport.Width, viewport.Height)
	case out.Strides[0] <= 0:
		return fmt.Errorf("%w: zero stride", ErrInvalidGeometry)
	case out.Strides[0] < out.Width:
		return fmt.Errorf("%w: stride %d is narrower than the frame width %d", ErrInvalidGeometry, out.Strides[0], out.Width)
	}
	return nil
}

// SolveViewTransform fits the frame into the viewport keeping its display
// aspect ratio and, with head tracking, shifts and rolls it so the image
// stays anchored to where the camera was pointing.
//
// The caller must have validated the input with ValidateGeometry.
func SolveViewTransform(in ViewInput) ViewTransform {
	windowAR := float32(in.Viewport.Width) / float32(in.Viewport.Height)
	sar := float32(in.SARWidth) / float32(in.SARHeight)
	videoAR := float32(in.FrameWidth) / float32(in.FrameHeight) * sar

	var ratioW, ratioH float32
	if videoAR >= windowAR {
		ratioW = 1
		ratioH = windowAR / videoAR
	} else {
		ratioW = videoAR / windowAR
		ratioH = 1
	}

	// Vertices live in a square space (y divided by the window aspect
	// ratio) so the roll below does not shear the image.
	windowW := float32(1)
	windowH := windowAR
	videoW := ratioW / windowW
	videoH := ratioH / windowH

	t := ViewTransform{
		WidthRatio:  ratioW,
		HeightRatio: ratioH,
		Vertices: [8]float32{
			-videoW, -videoH,
			videoW, -videoH,
			-videoW, videoH,
			videoW, videoH,
		},
	}

	if in.HeadTracking {
		t.Head = HeadDelta(in.Head)

		hFOV, vFOV := in.HFOV, in.VFOV
		if hFOV == 0 {
			hFOV = DefaultHFOV
		}
		if vFOV == 0 {
			vFOV = DefaultVFOV
		}
		hFOV = mgl32.DegToRad(hFOV)
		vFOV = mgl32.DegToRad(vFOV)

		scaleW := hFOV / ratioW
		scaleH := vFOV / ratioH
		t.DeltaX = (t.Head.Yaw - in.CameraPan) / scaleW * 2
		t.DeltaY = (t.Head.Pitch - in.CameraTilt) / scaleH * 2
		t.Roll = t.Head.Roll
	}

	t.Matrix = mgl32.Translate3D(-t.DeltaX, -t.DeltaY, 0).
		Mul4(mgl32.Scale3D(windowW, windowH, 1)).
		Mul4(mgl32.HomogRotate3DZ(t.Roll))

	return t
}

// HeadDelta returns the rotation from the reference pose to the current
// head pose as Euler angles: diff = head * inverse(reference).
func HeadDelta(o HeadOrientation) Euler {
	diff := o.Head.Mul(o.Reference.Conjugate())
	return QuatToEuler(diff)
}

// QuatToEuler converts a unit quaternion to aerospace (ZYX) Euler angles.
func QuatToEuler(q mgl32.Quat) Euler {
	w, x, y, z := float64(q.W), float64(q.V[0]), float64(q.V[1]), float64(q.V[2])

	sinTheta := 2 * (w*y - z*x)
	if sinTheta > 1 {
		sinTheta = 1
	} else if sinTheta < -1 {
		sinTheta = -1
	}

	return Euler{
		Roll:  float32(math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))),
		Pitch: float32(math.Asin(sinTheta)),
		Yaw:   float32(math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))),
	}
}

// EulerToQuat is the inverse of QuatToEuler.
func EulerToQuat(e Euler) mgl32.Quat {
	cr, sr := math.Cos(float64(e.Roll)/2), math.Sin(float64(e.Roll)/2)
	cp, sp := math.Cos(float64(e.Pitch)/2), math.Sin(float64(e.Pitch)/2)
	cy, sy := math.Cos(float64(e.Yaw)/2), math.Sin(float64(e.Yaw)/2)

	return mgl32.Quat{
		W: float32(cr*cp*cy + sr*sp*sy),
		V: mgl32.Vec3{
			float32(sr*cp*cy - cr*sp*sy),
			float32(cr*sp*cy + sr*cp*sy),
			float32(cr*cp*sy - sr*sp*cy),
		},
	}
}

// TextureCoordinates returns the triangle-strip texture coordinates for a
// frame of the given width stored with the given stride. The horizontal
// extent skips the padding after the visible pixels; rows are flipped so
// the first row of the plane lands at the top of the quad.
func TextureCoordinates(width, stride int) [8]float32 {
	s := float32(width) / float32(stride)
	return [8]float32{
		0, 1,
		s, 1,
		0, 0,
		s, 0,
	}
}
