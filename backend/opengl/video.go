package opengl

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/go-theft-auto/videorender"
)

// VideoTexUnitCount is the number of texture units a VideoProgram uses.
const VideoTexUnitCount = 3

type programVariant struct {
	program   uint32
	transform int32
	samplers  [3]int32
	position  int32
	texcoord  int32
}

// VideoProgram converts decoded frames to RGB and draws them as a single
// textured quad.
type VideoProgram struct {
	firstTexUnit uint32
	variants     [variantCount]programVariant
	textures     [3]uint32
	vao          uint32
	positionVBO  uint32
	texcoordVBO  uint32
}

var _ videorender.VideoProgram = (*VideoProgram)(nil)

// NewVideoProgram compiles every program variant and allocates the plane
// textures on units firstTexUnit..firstTexUnit+2. On failure nothing is
// left allocated and the error unwraps to videorender.ErrInitialization.
func NewVideoProgram(ctx context.Context, firstTexUnit uint32) (_ *VideoProgram, _err error) {
	p := &VideoProgram{firstTexUnit: firstTexUnit}
	defer func() {
		if _err != nil {
			p.Delete()
		}
	}()

	vertexShader, err := compileShader(gl.VERTEX_SHADER, videoVertexSource)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vertexShader)

	for i := range p.variants {
		if err := p.initVariant(i, vertexShader); err != nil {
			return nil, fmt.Errorf("unable to build the %s program: %w", variantNames[i], err)
		}
	}

	gl.GenTextures(int32(len(p.textures)), &p.textures[0])
	for i, tex := range p.textures {
		if tex == 0 {
			return nil, fmt.Errorf("%w: unable to create plane texture %d", videorender.ErrInitialization, i)
		}
		gl.ActiveTexture(gl.TEXTURE0 + p.firstTexUnit + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, tex)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenVertexArrays(1, &p.vao)
	gl.GenBuffers(1, &p.positionVBO)
	gl.GenBuffers(1, &p.texcoordVBO)
	if p.vao == 0 || p.positionVBO == 0 || p.texcoordVBO == 0 {
		return nil, fmt.Errorf("%w: unable to create the vertex buffers", videorender.ErrInitialization)
	}

	logger.Debugf(ctx, "video program ready on texture units %d..%d", firstTexUnit, firstTexUnit+VideoTexUnitCount-1)
	return p, nil
}

func (p *VideoProgram) initVariant(variant int, vertexShader uint32) error {
	fragmentShader, err := compileShader(gl.FRAGMENT_SHADER, fragmentSource(variant))
	if err != nil {
		return err
	}
	defer gl.DeleteShader(fragmentShader)

	program, err := linkProgram(vertexShader, fragmentShader)
	if err != nil {
		return err
	}

	v := &p.variants[variant]
	v.program = program
	v.transform = gl.GetUniformLocation(program, cstr("transform"))
	for i := range v.samplers {
		v.samplers[i] = gl.GetUniformLocation(program, cstr(fmt.Sprintf("plane%d", i)))
	}
	v.position = gl.GetAttribLocation(program, cstr("position"))
	v.texcoord = gl.GetAttribLocation(program, cstr("texcoord"))
	if v.position < 0 || v.texcoord < 0 {
		return &ProgramLinkError{Log: "missing vertex attributes"}
	}
	return nil
}

// DrawFrame uploads the planes of out and draws them into the bound target.
func (p *VideoProgram) DrawFrame(
	ctx context.Context,
	out *videorender.DecoderOutput,
	format videorender.PixelFormat,
	viewport videorender.Size,
	transform *videorender.ViewTransform,
) error {
	if err := videorender.ValidateGeometry(out, viewport); err != nil {
		return err
	}
	variant, ok := variantFor(format)
	if !ok {
		return fmt.Errorf("unsupported pixel format %s", format)
	}
	if err := p.checkPlanes(out, variant); err != nil {
		return err
	}

	v := &p.variants[variant]
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(v.program)

	switch variant {
	case variantOpaque:
		gl.ActiveTexture(gl.TEXTURE0 + p.firstTexUnit)
		gl.BindTexture(gl.TEXTURE_2D, out.Texture)
		gl.Uniform1i(v.samplers[0], int32(p.firstTexUnit))

	case variantPlanar:
		gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
		for i := 0; i < planeCount(variant); i++ {
			height := out.Height
			if i > 0 {
				height /= 2
			}
			p.upload(i, gl.RED, out.Strides[i], height, out.Planes[i])
			gl.Uniform1i(v.samplers[i], int32(p.firstTexUnit)+int32(i))
		}

	case variantSemiPlanar:
		gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
		p.upload(0, gl.RED, out.Strides[0], out.Height, out.Planes[0])
		gl.Uniform1i(v.samplers[0], int32(p.firstTexUnit))
		p.upload(1, gl.RG, out.Strides[1]/2, out.Height/2, out.Planes[1])
		gl.Uniform1i(v.samplers[1], int32(p.firstTexUnit)+1)
	}

	gl.UniformMatrix4fv(v.transform, 1, false, &transform.Matrix[0])

	texcoords := videorender.TextureCoordinates(out.Width, out.Strides[0])
	gl.BindVertexArray(p.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, p.positionVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(transform.Vertices)*4, gl.Ptr(&transform.Vertices[0]), gl.STREAM_DRAW)
	gl.VertexAttribPointerWithOffset(uint32(v.position), 2, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(uint32(v.position))

	gl.BindBuffer(gl.ARRAY_BUFFER, p.texcoordVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(texcoords)*4, gl.Ptr(&texcoords[0]), gl.STREAM_DRAW)
	gl.VertexAttribPointerWithOffset(uint32(v.texcoord), 2, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(uint32(v.texcoord))

	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)

	gl.DisableVertexAttribArray(uint32(v.position))
	gl.DisableVertexAttribArray(uint32(v.texcoord))
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("GL error 0x%x while drawing a %s frame", code, format)
	}
	return nil
}

// checkPlanes makes sure no upload reads past the end of a plane.
func (p *VideoProgram) checkPlanes(out *videorender.DecoderOutput, variant int) error {
	switch variant {
	case variantOpaque:
		if out.Texture == 0 {
			return fmt.Errorf("%w: opaque frame without a texture", videorender.ErrInvalidGeometry)
		}
		return nil
	case variantSemiPlanar:
		return requirePlaneSizes(out,
			out.Strides[0]*out.Height,
			out.Strides[1]*(out.Height/2),
		)
	default:
		return requirePlaneSizes(out,
			out.Strides[0]*out.Height,
			out.Strides[1]*(out.Height/2),
			out.Strides[2]*(out.Height/2),
		)
	}
}

func requirePlaneSizes(out *videorender.DecoderOutput, need ...int) error {
	for i, n := range need {
		if n <= 0 || len(out.Planes[i]) < n {
			return fmt.Errorf("%w: plane %d holds %d bytes, %d needed", videorender.ErrInvalidGeometry, i, len(out.Planes[i]), n)
		}
	}
	return nil
}

func (p *VideoProgram) upload(plane int, format uint32, width, height int, data []byte) {
	internalFormat := int32(gl.R8)
	if format == gl.RG {
		internalFormat = gl.RG8
	}
	gl.ActiveTexture(gl.TEXTURE0 + p.firstTexUnit + uint32(plane))
	gl.BindTexture(gl.TEXTURE_2D, p.textures[plane])
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat, int32(width), int32(height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(&data[0]))
}

// Delete releases every GL object. It is safe on a partially built program.
func (p *VideoProgram) Delete() {
	for i := range p.variants {
		if p.variants[i].program != 0 {
			gl.DeleteProgram(p.variants[i].program)
		}
		p.variants[i] = programVariant{}
	}
	for i, tex := range p.textures {
		if tex != 0 {
			gl.DeleteTextures(1, &p.textures[i])
			p.textures[i] = 0
		}
	}
	if p.positionVBO != 0 {
		gl.DeleteBuffers(1, &p.positionVBO)
		p.positionVBO = 0
	}
	if p.texcoordVBO != 0 {
		gl.DeleteBuffers(1, &p.texcoordVBO)
		p.texcoordVBO = 0
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
}
