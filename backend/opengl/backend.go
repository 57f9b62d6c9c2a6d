// Package opengl provides the OpenGL 4.1 backend of videorender.
package opengl

import (
	"context"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/go-theft-auto/videorender"
	"github.com/go-theft-auto/videorender/hud"
)

// Texture units are assigned in this order: distortion, video, HUD.
const (
	DistortionFirstTexUnit = 0
	VideoFirstTexUnit      = DistortionFirstTexUnit + DistortionTexUnitCount
	OverlayFirstTexUnit    = VideoFirstTexUnit + VideoTexUnitCount
)

// Backend creates OpenGL resources for a videorender.Renderer. The GL
// context must be current and gl.Init must have been called.
type Backend struct {
	HUDStyle hud.Style
}

var _ videorender.Backend = (*Backend)(nil)

// NewBackend returns a Backend drawing the HUD with hud.DefaultStyle.
func NewBackend() *Backend {
	return &Backend{HUDStyle: hud.DefaultStyle()}
}

// PrepareScreen implements videorender.Backend.
func (b *Backend) PrepareScreen(area videorender.Rect) {
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.Viewport(int32(area.X), int32(area.Y), int32(area.W), int32(area.H))
}

// BindScreen implements videorender.Backend.
func (b *Backend) BindScreen(area videorender.Rect) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(int32(area.X), int32(area.Y), int32(area.W), int32(area.H))
}

// NewVideoProgram implements videorender.Backend.
func (b *Backend) NewVideoProgram(ctx context.Context) (videorender.VideoProgram, error) {
	v, err := NewVideoProgram(ctx, VideoFirstTexUnit)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// NewOverlay implements videorender.Backend.
func (b *Backend) NewOverlay(ctx context.Context, media *videorender.Media) (videorender.Overlay, error) {
	o, err := NewOverlay(media, b.HUDStyle)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// NewOffscreenTarget implements videorender.Backend.
func (b *Backend) NewOffscreenTarget(ctx context.Context, size videorender.Size) (videorender.OffscreenTarget, error) {
	t, err := NewTarget(size, DistortionFirstTexUnit)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewDistortion implements videorender.Backend.
func (b *Backend) NewDistortion(ctx context.Context, cfg videorender.DistortionConfig) (videorender.Distortion, error) {
	cfg.FirstTexUnit = DistortionFirstTexUnit
	d, err := NewDistortion(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Version returns the GL version and renderer strings of the current context.
func Version() string {
	return fmt.Sprintf("%s (%s)", gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.RENDERER)))
}
