package opengl

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/go-theft-auto/videorender"
)

// Snapshot reads area of the bound framebuffer into an image.
func Snapshot(area videorender.Rect) (*image.RGBA, error) {
	if area.Size().IsZero() {
		return nil, fmt.Errorf("%w: snapshot area %dx%d", videorender.ErrInvalidGeometry, area.W, area.H)
	}

	img := image.NewRGBA(image.Rect(0, 0, area.W, area.H))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(area.X), int32(area.Y), int32(area.W), int32(area.H), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("GL error 0x%x while reading pixels", code)
	}

	FlipRows(img)
	return img, nil
}

// FlipRows turns a bottom-up GL readback into a top-down image in place.
func FlipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Rect.Dx()*4)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : y*img.Stride+len(row)]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+len(row)]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
