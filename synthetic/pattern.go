package synthetic

import (
	"math"
	"time"

	"github.com/go-theft-auto/videorender"
)

// Bars are the 75% color bars of the pattern, left to right.
var Bars = [8][3]float32{
	{0.75, 0.75, 0.75}, // white
	{0.75, 0.75, 0},    // yellow
	{0, 0.75, 0.75},    // cyan
	{0, 0.75, 0},       // green
	{0.75, 0, 0.75},    // magenta
	{0.75, 0, 0},       // red
	{0, 0, 0.75},       // blue
	{0, 0, 0},          // black
}

// RGBToYUV is the inverse of videorender.YUVToRGB, returning bytes.
func RGBToYUV(r, g, b float32) (y, u, v byte) {
	luma := 0.299*r + 0.587*g + 0.114*b
	cb := (b-luma)/videorender.CoeffBU + 0.5
	cr := (r-luma)/videorender.CoeffRV + 0.5
	return toByte(luma), toByte(cb), toByte(cr)
}

func toByte(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(math.Round(float64(v) * 255))
	}
}

// BarAt returns the index of the bar covering column x of a frame of the
// given width.
func BarAt(x, width int) int {
	return x * len(Bars) / width
}

// CursorAt is the column of the moving cursor in frame index.
func CursorAt(index uint64, width int) int {
	return int(index*8) % width
}

// allocate sizes the planes of out for cfg, reusing their storage.
func allocate(out *videorender.DecoderOutput, cfg Config) {
	stride := cfg.Width + cfg.Padding
	chromaH := cfg.Height / 2

	out.Width, out.Height = cfg.Width, cfg.Height
	out.SARWidth, out.SARHeight = cfg.SARWidth, cfg.SARHeight
	out.Format = cfg.Format
	out.Strides = [3]int{}
	out.Planes[0] = resize(out.Planes[0], stride*cfg.Height)
	out.Strides[0] = stride

	switch cfg.Format.Resolve() {
	case videorender.PixelFormatYUV420SemiPlanar:
		out.Planes[1] = resize(out.Planes[1], stride*chromaH)
		out.Strides[1] = stride
		out.Planes[2] = nil
	default:
		chromaStride := stride / 2
		out.Planes[1] = resize(out.Planes[1], chromaStride*chromaH)
		out.Planes[2] = resize(out.Planes[2], chromaStride*chromaH)
		out.Strides[1], out.Strides[2] = chromaStride, chromaStride
	}
}

func resize(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}

// paint draws the bars and the cursor of frame index into out.
func paint(out *videorender.DecoderOutput, index uint64) {
	var yuv [len(Bars)][3]byte
	for i, c := range Bars {
		yuv[i][0], yuv[i][1], yuv[i][2] = RGBToYUV(c[0], c[1], c[2])
	}
	cursor := CursorAt(index, out.Width)

	for y := 0; y < out.Height; y++ {
		row := out.Planes[0][y*out.Strides[0]:]
		for x := 0; x < out.Width; x++ {
			row[x] = yuv[BarAt(x, out.Width)][0]
		}
		row[cursor] = 255
	}

	chromaW, chromaH := out.Width/2, out.Height/2
	semiPlanar := out.Format.Resolve() == videorender.PixelFormatYUV420SemiPlanar
	for y := 0; y < chromaH; y++ {
		for x := 0; x < chromaW; x++ {
			bar := yuv[BarAt(x*2, out.Width)]
			if semiPlanar {
				row := out.Planes[1][y*out.Strides[1]:]
				row[x*2], row[x*2+1] = bar[1], bar[2]
				continue
			}
			out.Planes[1][y*out.Strides[1]+x] = bar[1]
			out.Planes[2][y*out.Strides[2]+x] = bar[2]
		}
	}
}

// Telemetry returns the simulated flight state at playback time t.
func Telemetry(t time.Duration, media videorender.Media) videorender.FrameMetadata {
	s := t.Seconds()
	battery := 100 - int(s/6)
	if battery < 0 {
		battery = 0
	}
	return videorender.FrameMetadata{
		HFOV: media.HFOV,
		VFOV: media.VFOV,
		DroneAttitude: videorender.Euler{
			Roll:  float32(0.3 * math.Sin(s)),
			Pitch: float32(0.1 * math.Sin(0.7*s)),
			Yaw:   float32(math.Remainder(0.1*s, 2*math.Pi)),
		},
		Altitude:          float32(50 + 20*math.Sin(0.2*s)),
		GroundSpeed:       float32(8 + 4*math.Cos(0.3*s)),
		BatteryPercentage: battery,
	}
}
