package opengl

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/go-theft-auto/videorender"
)

// DistortionTexUnitCount is the number of texture units a Distortion uses.
const DistortionTexUnitCount = 1

const mmPerInch = 25.4

// Calibration used when no settings are available.
const (
	DefaultIPD   = 63.0 // mm
	DefaultScale = 1.0
)

// LensModel holds the radial distortion coefficients of a headset and the
// height of its lens axis above the bottom edge of the phone tray.
type LensModel struct {
	K1, K2     float32
	AxisHeight float32 // mm, 0 centers the lens vertically
}

// LensModels maps each known headset to its lens.
var LensModels = map[videorender.HMDModel]LensModel{
	videorender.HMDModelUnknown:         {K1: 0.22, K2: 0.24},
	videorender.HMDModelCockpitGlasses:  {K1: 0.34, K2: 0.55, AxisHeight: 33.5},
	videorender.HMDModelCockpitGlasses2: {K1: 0.44, K2: 0.25, AxisHeight: 35},
}

// EyeParams are the per-eye uniforms of the distortion shader.
type EyeParams struct {
	// Lens centre in the eye viewport, normalized to [-1, 1].
	LensCenter mgl32.Vec2
	K1, K2     float32
	Scale      float32
	Pan        mgl32.Vec2
	// Width over height of one eye viewport.
	Aspect float32
}

// ComputeEyeParams places the lens of the given eye (0 left, 1 right).
// Without screen density the lens sits at the centre of each half.
func ComputeEyeParams(cfg videorender.DistortionConfig, eye int) EyeParams {
	lens := cfg.Lens
	if !cfg.Calibrated {
		lens = videorender.HMDDistortion{IPD: DefaultIPD, Scale: DefaultScale}
	}
	model, ok := LensModels[lens.Model]
	if !ok {
		model = LensModels[videorender.HMDModelUnknown]
	}

	p := EyeParams{
		K1:     model.K1,
		K2:     model.K2,
		Scale:  lens.Scale,
		Pan:    mgl32.Vec2{lens.PanH, lens.PanV},
		Aspect: 1,
	}
	if p.Scale <= 0 {
		p.Scale = DefaultScale
	}
	eyeW := float32(cfg.RenderSize.Width) / 2
	eyeH := float32(cfg.RenderSize.Height)
	if eyeW > 0 && eyeH > 0 {
		p.Aspect = eyeW / eyeH
	}

	screen := cfg.Screen
	if !cfg.Calibrated || screen.DPIX <= 0 || screen.DPIY <= 0 {
		return p
	}

	ipd := lens.IPD
	if ipd <= 0 {
		ipd = DefaultIPD
	}

	// Horizontal: the lenses are ipd apart around the screen centre, the
	// eye viewport centres are a quarter screen away from it.
	eyeWidthMM := eyeW / screen.DPIX * mmPerInch
	offset := (eyeWidthMM/2 - ipd/2) / (eyeWidthMM / 2)
	if eye == 0 {
		p.LensCenter[0] = offset
	} else {
		p.LensCenter[0] = -offset
	}

	// Vertical: the axis height is measured from the tray, the screen
	// starts DeviceMargin above it.
	if model.AxisHeight > 0 {
		heightMM := eyeH / screen.DPIY * mmPerInch
		axis := model.AxisHeight - screen.DeviceMargin
		p.LensCenter[1] = (axis - heightMM/2) / (heightMM / 2)
	}
	return p
}

// Distort maps a position of the eye viewport ([-1, 1]) to the texture
// coordinate sampled there. It mirrors the fragment shader; ok is false
// when the sample falls outside the source.
func (p EyeParams) Distort(pos mgl32.Vec2) (uv mgl32.Vec2, ok bool) {
	d := pos.Sub(p.LensCenter)
	d[0] *= p.Aspect
	r2 := d.Dot(d)
	f := (1 + p.K1*r2 + p.K2*r2*r2) / p.Scale
	d = d.Mul(f)
	d[0] /= p.Aspect
	uv = d.Add(p.LensCenter).Add(p.Pan).Mul(0.5).Add(mgl32.Vec2{0.5, 0.5})
	ok = uv[0] >= 0 && uv[0] <= 1 && uv[1] >= 0 && uv[1] <= 1
	return uv, ok
}

const distortionVertexSource = `
#version 410 core
layout (location = 0) in vec2 aPos;

out vec2 vPos;

void main() {
    gl_Position = vec4(aPos, 0.0, 1.0);
    vPos = aPos;
}
`

const distortionFragmentSource = `
#version 410 core
in vec2 vPos;

uniform sampler2D source;
uniform vec2 lensCenter;
uniform vec2 coefficients;
uniform float scale;
uniform vec2 pan;
uniform float aspect;

out vec4 FragColor;

void main() {
    vec2 d = vPos - lensCenter;
    d.x *= aspect;
    float r2 = dot(d, d);
    d *= (1.0 + coefficients.x * r2 + coefficients.y * r2 * r2) / scale;
    d.x /= aspect;
    vec2 uv = (d + lensCenter + pan) * 0.5 + 0.5;
    if (any(lessThan(uv, vec2(0.0))) || any(greaterThan(uv, vec2(1.0)))) {
        FragColor = vec4(0.0, 0.0, 0.0, 1.0);
        return;
    }
    FragColor = texture(source, uv);
}
`

// Distortion re-projects the off-screen render once per eye through the
// lens model, side by side in the bound viewport.
type Distortion struct {
	texUnit uint32
	eyes    [2]EyeParams

	program   uint32
	vao, vbo  uint32
	sourceLoc int32
	lensLoc   int32
	coeffLoc  int32
	scaleLoc  int32
	panLoc    int32
	aspectLoc int32
}

var _ videorender.Distortion = (*Distortion)(nil)

// NewDistortion builds the distortion pass for cfg.
func NewDistortion(ctx context.Context, cfg videorender.DistortionConfig) (_ *Distortion, _err error) {
	if cfg.RenderSize.IsZero() {
		return nil, fmt.Errorf("%w: render size %dx%d", videorender.ErrInvalidGeometry, cfg.RenderSize.Width, cfg.RenderSize.Height)
	}

	d := &Distortion{
		texUnit: cfg.FirstTexUnit,
		eyes:    [2]EyeParams{ComputeEyeParams(cfg, 0), ComputeEyeParams(cfg, 1)},
	}
	defer func() {
		if _err != nil {
			d.Delete()
		}
	}()

	var err error
	d.program, err = createShaderProgram(distortionVertexSource, distortionFragmentSource)
	if err != nil {
		return nil, fmt.Errorf("unable to create the distortion shader: %w", err)
	}
	d.sourceLoc = gl.GetUniformLocation(d.program, cstr("source"))
	d.lensLoc = gl.GetUniformLocation(d.program, cstr("lensCenter"))
	d.coeffLoc = gl.GetUniformLocation(d.program, cstr("coefficients"))
	d.scaleLoc = gl.GetUniformLocation(d.program, cstr("scale"))
	d.panLoc = gl.GetUniformLocation(d.program, cstr("pan"))
	d.aspectLoc = gl.GetUniformLocation(d.program, cstr("aspect"))

	quad := [8]float32{-1, -1, 1, -1, -1, 1, 1, 1}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	if d.vao == 0 || d.vbo == 0 {
		gl.BindVertexArray(0)
		return nil, fmt.Errorf("%w: unable to create the distortion buffers", videorender.ErrInitialization)
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(quad)*4, gl.Ptr(&quad[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	logger.Debugf(ctx, "distortion pass: model %s, calibrated %t, eyes %+v", cfg.Lens.Model, cfg.Calibrated, d.eyes)
	return d, nil
}

// Render draws texture into the left and right halves of the bound viewport.
func (d *Distortion) Render(ctx context.Context, texture uint32, source videorender.Size) error {
	if texture == 0 || source.IsZero() {
		return fmt.Errorf("%w: distortion source %dx%d texture %d", videorender.ErrInvalidGeometry, source.Width, source.Height, texture)
	}

	var viewport [4]int32
	gl.GetIntegerv(gl.VIEWPORT, &viewport[0])
	x, y, w, h := viewport[0], viewport[1], viewport[2], viewport[3]
	defer gl.Viewport(x, y, w, h)

	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.Disable(gl.DEPTH_TEST)

	gl.UseProgram(d.program)
	gl.ActiveTexture(gl.TEXTURE0 + d.texUnit)
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.Uniform1i(d.sourceLoc, int32(d.texUnit))
	gl.BindVertexArray(d.vao)

	for i, eye := range d.eyes {
		gl.Viewport(x+int32(i)*w/2, y, w/2, h)
		gl.Uniform2f(d.lensLoc, eye.LensCenter[0], eye.LensCenter[1])
		gl.Uniform2f(d.coeffLoc, eye.K1, eye.K2)
		gl.Uniform1f(d.scaleLoc, eye.Scale)
		gl.Uniform2f(d.panLoc, eye.Pan[0], eye.Pan[1])
		gl.Uniform1f(d.aspectLoc, eye.Aspect)
		gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	}

	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("GL error 0x%x while applying the distortion", code)
	}
	return nil
}

// Delete releases OpenGL resources.
func (d *Distortion) Delete() {
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
		d.vbo = 0
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
	if d.program != 0 {
		gl.DeleteProgram(d.program)
		d.program = 0
	}
}
