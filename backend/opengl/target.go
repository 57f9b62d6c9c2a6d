package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/go-theft-auto/videorender"
)

// Target is an off-screen framebuffer with an RGBA color texture and a
// 16-bit depth renderbuffer.
type Target struct {
	size         videorender.Size
	fbo          uint32
	texture      uint32
	renderbuffer uint32
}

var _ videorender.OffscreenTarget = (*Target)(nil)

// NewTarget allocates a complete framebuffer of the given size. texUnit is
// the unit the color texture gets bound to while it is set up.
func NewTarget(size videorender.Size, texUnit uint32) (_ *Target, _err error) {
	if size.IsZero() {
		return nil, fmt.Errorf("%w: target size %dx%d", videorender.ErrInvalidGeometry, size.Width, size.Height)
	}

	t := &Target{size: size}
	defer func() {
		if _err != nil {
			t.Delete()
		}
	}()

	gl.GenFramebuffers(1, &t.fbo)
	if t.fbo == 0 {
		return nil, fmt.Errorf("%w: unable to create a framebuffer", videorender.ErrInitialization)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	gl.GenTextures(1, &t.texture)
	if t.texture == 0 {
		return nil, fmt.Errorf("%w: unable to create the color texture", videorender.ErrInitialization)
	}
	gl.ActiveTexture(gl.TEXTURE0 + texUnit)
	gl.BindTexture(gl.TEXTURE_2D, t.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(size.Width), int32(size.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	defer gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenRenderbuffers(1, &t.renderbuffer)
	if t.renderbuffer == 0 {
		return nil, fmt.Errorf("%w: unable to create the depth renderbuffer", videorender.ErrInitialization)
	}
	gl.BindRenderbuffer(gl.RENDERBUFFER, t.renderbuffer)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT16, int32(size.Width), int32(size.Height))
	defer gl.BindRenderbuffer(gl.RENDERBUFFER, 0)

	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.texture, 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.renderbuffer)

	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return nil, fmt.Errorf("%w: incomplete framebuffer (status 0x%x)", videorender.ErrInitialization, status)
	}

	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	return t, nil
}

// Bind makes the framebuffer current, sets the viewport to its size and clears it.
func (t *Target) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, int32(t.size.Width), int32(t.size.Height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Texture returns the color attachment.
func (t *Target) Texture() uint32 { return t.texture }

// Size returns the framebuffer dimensions.
func (t *Target) Size() videorender.Size { return t.size }

// Framebuffer returns the GL framebuffer name.
func (t *Target) Framebuffer() uint32 { return t.fbo }

// Delete releases the framebuffer and its attachments.
func (t *Target) Delete() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.texture != 0 {
		gl.DeleteTextures(1, &t.texture)
		t.texture = 0
	}
	if t.renderbuffer != 0 {
		gl.DeleteRenderbuffers(1, &t.renderbuffer)
		t.renderbuffer = 0
	}
}
