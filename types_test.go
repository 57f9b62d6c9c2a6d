package videorender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePixelFormat(t *testing.T) {
	for _, f := range []PixelFormat{
		PixelFormatUndefined,
		PixelFormatOpaque,
		PixelFormatYUV420Planar,
		PixelFormatYUV420SemiPlanar,
	} {
		got, err := ParsePixelFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParsePixelFormat("rgb24")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, PixelFormatYUV420Planar, PixelFormatUndefined.Resolve())
	assert.Equal(t, PixelFormatOpaque, PixelFormatOpaque.Resolve())
	assert.Equal(t, PixelFormatYUV420SemiPlanar, PixelFormatYUV420SemiPlanar.Resolve())
}

func TestResolvedRenderArea(t *testing.T) {
	vp := Viewport{Window: Size{Width: 800, Height: 600}}
	assert.Equal(t, Rect{W: 800, H: 600}, vp.ResolvedRenderArea())

	vp.RenderArea = Rect{X: 10, Y: 20, W: 400}
	assert.Equal(t, Rect{X: 10, Y: 20, W: 400, H: 600}, vp.ResolvedRenderArea())
}

func TestScaledSize(t *testing.T) {
	out := &DecoderOutput{Width: 720, Height: 576, SARWidth: 16, SARHeight: 11}
	assert.Equal(t, Size{Width: 11520, Height: 6336}, out.ScaledSize())
}
