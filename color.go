package videorender

// BT.601 full-range YUV to RGB coefficients. The GPU fragment shaders are
// generated from these constants, so both paths produce the same colors.
const (
	CoeffRV = 1.402
	CoeffGU = 0.344
	CoeffGV = 0.714
	CoeffBU = 1.772
)

// YUVToRGB converts normalized luma and chroma samples to RGB. Chroma is
// centered here: u = U-0.5, v = V-0.5. Results are not clamped.
func YUVToRGB(y, u, v float32) (r, g, b float32) {
	u -= 0.5
	v -= 0.5
	r = y + CoeffRV*v
	g = y - CoeffGU*u - CoeffGV*v
	b = y + CoeffBU*u
	return r, g, b
}

// SampleYUV returns the normalized Y, U and V samples of the pixel at x, y.
// ok is false for opaque frames and for out-of-range coordinates.
func (o *DecoderOutput) SampleYUV(x, y int) (yy, u, v float32, ok bool) {
	if x < 0 || y < 0 || x >= o.Width || y >= o.Height {
		return 0, 0, 0, false
	}

	luma, ok := sample(o.Planes[0], o.Strides[0], x, y)
	if !ok {
		return 0, 0, 0, false
	}

	cx, cy := x/2, y/2
	var cb, cr byte
	switch o.Format.Resolve() {
	case PixelFormatYUV420Planar:
		var okU, okV bool
		cb, okU = sample(o.Planes[1], o.Strides[1], cx, cy)
		cr, okV = sample(o.Planes[2], o.Strides[2], cx, cy)
		if !okU || !okV {
			return 0, 0, 0, false
		}
	case PixelFormatYUV420SemiPlanar:
		var okU, okV bool
		cb, okU = sample(o.Planes[1], o.Strides[1], cx*2, cy)
		cr, okV = sample(o.Planes[1], o.Strides[1], cx*2+1, cy)
		if !okU || !okV {
			return 0, 0, 0, false
		}
	default:
		return 0, 0, 0, false
	}

	return float32(luma) / 255, float32(cb) / 255, float32(cr) / 255, true
}

// RGBAt returns the color the GPU produces for the pixel at x, y.
func (o *DecoderOutput) RGBAt(x, y int) (r, g, b float32, ok bool) {
	yy, u, v, ok := o.SampleYUV(x, y)
	if !ok {
		return 0, 0, 0, false
	}
	r, g, b = YUVToRGB(yy, u, v)
	return r, g, b, true
}

func sample(plane []byte, stride, x, y int) (byte, bool) {
	idx := y*stride + x
	if idx < 0 || idx >= len(plane) {
		return 0, false
	}
	return plane[idx], true
}
