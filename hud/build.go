package hud

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/go-theft-auto/videorender"
)

// Style controls the look of the overlay.
type Style struct {
	Color        uint32
	WarningColor uint32
	AlertColor   uint32
	HeadColor    uint32
	GaugeBgColor uint32
	FrameColor   uint32
	Thickness    float32
	// Size of one font pixel of the readouts. Zero hides them.
	TextScale float32

	// Full-scale values of the gauges.
	MaxAltitude    float32 // meters
	MaxGroundSpeed float32 // m/s
}

// DefaultStyle returns the default overlay style.
func DefaultStyle() Style {
	return Style{
		Color:          ColorGreen,
		WarningColor:   ColorYellow,
		AlertColor:     ColorRed,
		HeadColor:      ColorCyan,
		GaugeBgColor:   RGBA(0, 0, 0, 96),
		FrameColor:     RGBA(255, 255, 255, 64),
		Thickness:      2,
		TextScale:      2,
		MaxAltitude:    120,
		MaxGroundSpeed: 20,
	}
}

// Input is everything one overlay pass depends on.
type Input struct {
	videorender.OverlayParams
	Media *videorender.Media
	Style Style
}

// Layout is the screen-space frame of reference derived from Input.
type Layout struct {
	Viewport videorender.Size
	// Rectangle covered by the fitted video, in pixels.
	Video [4]float32 // x, y, w, h
	// Centre of the viewport.
	CX, CY float32
	// Inset of the gauges from the video edges.
	Margin float32
	// Pixels per radian, horizontally and vertically.
	PxPerRadH, PxPerRadV float32
}

// ComputeLayout fits the scaled frame into the viewport the same way the
// video path does. In HMD mode the gauges move inwards, away from the
// distorted lens edges.
func ComputeLayout(in Input) Layout {
	vp := in.Viewport
	l := Layout{
		Viewport: vp,
		CX:       float32(vp.Width) / 2,
		CY:       float32(vp.Height) / 2,
	}

	videoW, videoH := float32(vp.Width), float32(vp.Height)
	if !in.Scaled.IsZero() && !vp.IsZero() {
		t := videorender.SolveViewTransform(videorender.ViewInput{
			FrameWidth:  in.Scaled.Width,
			FrameHeight: in.Scaled.Height,
			SARWidth:    1,
			SARHeight:   1,
			Viewport:    vp,
		})
		videoW *= t.WidthRatio
		videoH *= t.HeightRatio
	}
	l.Video = [4]float32{l.CX - videoW/2, l.CY - videoH/2, videoW, videoH}

	l.Margin = 0.05 * min(videoW, videoH)
	if in.DistortionActive {
		l.Margin = 0.2 * min(videoW, videoH)
	}

	hFOV, vFOV := in.Metadata.HFOV, in.Metadata.VFOV
	if in.Media != nil {
		if !validFOV(hFOV) {
			hFOV = in.Media.HFOV
		}
		if !validFOV(vFOV) {
			vFOV = in.Media.VFOV
		}
	}
	if !validFOV(hFOV) {
		hFOV = videorender.DefaultHFOV
	}
	if !validFOV(vFOV) {
		vFOV = videorender.DefaultVFOV
	}
	l.PxPerRadH = videoW / mgl32.DegToRad(hFOV)
	l.PxPerRadV = videoH / mgl32.DegToRad(vFOV)
	return l
}

// Build appends the overlay for in to b.
func Build(b *Batch, in Input) Layout {
	l := ComputeLayout(in)
	if l.Viewport.IsZero() {
		return l
	}
	s := in.Style

	b.AddRectOutline(l.Video[0], l.Video[1], l.Video[2], l.Video[3], s.FrameColor, 1)
	buildReticle(b, l, s)
	buildHorizon(b, l, s, in.Metadata.DroneAttitude)
	buildHeadingTape(b, l, s, in.Metadata.DroneAttitude.Yaw)
	buildGauges(b, l, s, in.Metadata)
	buildReadouts(b, l, s, in.Metadata)
	if in.HeadTrackingActive && in.Head != nil {
		buildHeadMarker(b, l, s, *in.Head)
	}
	return l
}

func buildReticle(b *Batch, l Layout, s Style) {
	size := 0.03 * min(l.Video[2], l.Video[3])
	gap := size / 3
	b.AddLine(l.CX-size, l.CY, l.CX-gap, l.CY, s.Color, s.Thickness)
	b.AddLine(l.CX+gap, l.CY, l.CX+size, l.CY, s.Color, s.Thickness)
	b.AddLine(l.CX, l.CY-size, l.CX, l.CY-gap, s.Color, s.Thickness)
	b.AddLine(l.CX, l.CY+gap, l.CX, l.CY+size, s.Color, s.Thickness)
}

// HorizonEndpoints returns the two ends of the artificial horizon line. A
// positive pitch (nose up) moves the horizon down; a positive roll (right
// wing down) tilts it counter-clockwise on screen. ok is false when the
// attitude is not finite.
func HorizonEndpoints(l Layout, attitude videorender.Euler) (x1, y1, x2, y2 float32, ok bool) {
	if !finite(attitude.Pitch) || !finite(attitude.Roll) {
		return 0, 0, 0, 0, false
	}
	half := l.Video[2]/2 - l.Margin
	cy := l.CY + attitude.Pitch*l.PxPerRadV
	s, c := math.Sincos(math.Mod(float64(-attitude.Roll), 2*math.Pi))
	dx := half * float32(c)
	dy := half * float32(s)
	return l.CX - dx, cy - dy, l.CX + dx, cy + dy, true
}

func buildHorizon(b *Batch, l Layout, s Style, attitude videorender.Euler) {
	x1, y1, x2, y2, ok := HorizonEndpoints(l, attitude)
	if !ok {
		return
	}
	b.AddLine(x1, y1, x2, y2, s.Color, s.Thickness)
}

func validFOV(deg float32) bool {
	return finite(deg) && deg > 0
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// HeadingDegrees converts a yaw in radians to a compass heading in
// [0, 360). ok is false when yaw is not finite.
func HeadingDegrees(yaw float32) (heading float64, ok bool) {
	if !finite(yaw) {
		return 0, false
	}
	heading = math.Mod(float64(yaw)*180/math.Pi, 360)
	if heading < 0 {
		heading += 360
	}
	if heading >= 360 {
		heading = 0
	}
	return heading, true
}

// buildHeadingTape draws a tick every 10 degrees over +-30 degrees around
// the heading, with a caret at the current heading.
func buildHeadingTape(b *Batch, l Layout, s Style, yaw float32) {
	heading, ok := HeadingDegrees(yaw)
	if !ok {
		return
	}
	top := l.Video[1] + l.Margin
	const span = 30
	pxPerDeg := (l.Video[2]/2 - l.Margin) / span

	first := int(math.Ceil((heading - span) / 10))
	last := int(math.Floor((heading + span) / 10))
	for tick := first; tick <= last; tick++ {
		deg := float64(tick * 10)
		x := l.CX + float32(deg-heading)*pxPerDeg
		length := l.Margin * 0.25
		if tick%9 == 0 {
			length *= 2
		}
		b.AddLine(x, top, x, top+length, s.Color, s.Thickness)
	}

	caret := l.Margin * 0.2
	b.AddTriangle(l.CX, top+caret*2.5, l.CX-caret, top+caret*3.5, l.CX+caret, top+caret*3.5, s.Color)
}

// GaugeFraction returns value/full clamped to [0, 1]. NaN reads as 0.
func GaugeFraction(value, full float32) float32 {
	if full <= 0 || !(value > 0) {
		return 0
	}
	if value >= full {
		return 1
	}
	return value / full
}

// BatteryColor picks the gauge color for a battery percentage.
func BatteryColor(s Style, percentage float32) uint32 {
	switch {
	case percentage > 50:
		return s.Color
	case percentage > 20:
		return s.WarningColor
	default:
		return s.AlertColor
	}
}

func buildGauges(b *Batch, l Layout, s Style, md videorender.FrameMetadata) {
	x, y, w, h := l.Video[0], l.Video[1], l.Video[2], l.Video[3]
	barW := l.Margin * 0.3
	barH := h - 2*l.Margin
	if barH <= 0 || barW <= 0 {
		return
	}

	// altitude on the right, ground speed on the left, both filling upwards
	vertical := func(bx float32, fraction float32) {
		b.AddRect(bx, y+l.Margin, barW, barH, s.GaugeBgColor)
		b.AddRect(bx, y+l.Margin+barH*(1-fraction), barW, barH*fraction, s.Color)
		b.AddRectOutline(bx, y+l.Margin, barW, barH, s.Color, 1)
	}
	vertical(x+w-l.Margin, GaugeFraction(md.Altitude, s.MaxAltitude))
	vertical(x+l.Margin-barW, GaugeFraction(md.GroundSpeed, s.MaxGroundSpeed))

	// battery along the bottom edge
	batW := w/4 - l.Margin
	if batW <= 0 {
		return
	}
	bx := x + w - l.Margin - batW
	by := y + h - l.Margin
	battery := float32(md.BatteryPercentage)
	b.AddRect(bx, by, batW, barW, s.GaugeBgColor)
	b.AddRect(bx, by, batW*GaugeFraction(battery, 100), barW, BatteryColor(s, battery))
	b.AddRectOutline(bx, by, batW, barW, s.Color, 1)
}

// HeadMarkerPosition returns where the viewer's head direction lands on
// screen, relative to the viewport centre. ok is false when the head
// orientation is not finite.
func HeadMarkerPosition(l Layout, head videorender.Euler) (x, y float32, ok bool) {
	if !finite(head.Yaw) || !finite(head.Pitch) {
		return 0, 0, false
	}
	return l.CX + head.Yaw*l.PxPerRadH, l.CY - head.Pitch*l.PxPerRadV, true
}

func buildHeadMarker(b *Batch, l Layout, s Style, head videorender.Euler) {
	x, y, ok := HeadMarkerPosition(l, head)
	if !ok {
		return
	}
	r := 0.015 * min(l.Video[2], l.Video[3])
	b.AddCircle(x, y, r, s.HeadColor, s.Thickness, 16)
}

// Readouts holds the text printed next to the gauges.
type Readouts struct {
	Altitude, GroundSpeed, Battery, Heading string
}

// FormatReadouts renders the telemetry values as HUD text. The heading is
// in whole degrees within [0, 360). Values that are not finite print as
// dashes.
func FormatReadouts(md videorender.FrameMetadata) Readouts {
	r := Readouts{
		Altitude:    "ALT ---",
		GroundSpeed: "SPD ---",
		Battery:     fmt.Sprintf("BAT %d%%", md.BatteryPercentage),
		Heading:     "HDG ---",
	}
	if finite(md.Altitude) {
		r.Altitude = fmt.Sprintf("ALT %.0fm", md.Altitude)
	}
	if finite(md.GroundSpeed) {
		r.GroundSpeed = fmt.Sprintf("SPD %.1fm/s", md.GroundSpeed)
	}
	if heading, ok := HeadingDegrees(md.DroneAttitude.Yaw); ok {
		r.Heading = fmt.Sprintf("HDG %03d", int(heading)%360)
	}
	return r
}

func buildReadouts(b *Batch, l Layout, s Style, md videorender.FrameMetadata) {
	if s.TextScale <= 0 {
		return
	}
	r := FormatReadouts(md)
	x, y, w, h := l.Video[0], l.Video[1], l.Video[2], l.Video[3]
	lineH := GlyphSize * s.TextScale
	pad := lineH / 2
	barW := l.Margin * 0.3

	// altitude above its gauge on the right, ground speed above the left one
	top := y + l.Margin - lineH - pad
	b.AddText(x+w-l.Margin+barW-TextWidth(r.Altitude, s.TextScale), top, r.Altitude, s.TextScale, s.Color)
	b.AddText(x+l.Margin-barW, top, r.GroundSpeed, s.TextScale, s.Color)

	battery := float32(md.BatteryPercentage)
	b.AddText(x+w-l.Margin-TextWidth(r.Battery, s.TextScale), y+h-l.Margin-lineH-pad, r.Battery, s.TextScale, BatteryColor(s, battery))

	caret := l.Margin * 0.2
	b.AddText(l.CX-TextWidth(r.Heading, s.TextScale)/2, y+l.Margin+caret*3.5+pad, r.Heading, s.TextScale, s.Color)
}
