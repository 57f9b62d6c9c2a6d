package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/go-theft-auto/videorender"
)

// ShaderCompileError is returned when a shader stage does not compile.
type ShaderCompileError struct {
	Stage string
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("%s shader compilation failed: %s", e.Stage, e.Log)
}

// Unwrap makes errors.Is(err, videorender.ErrInitialization) hold.
func (e *ShaderCompileError) Unwrap() error {
	return videorender.ErrInitialization
}

// ProgramLinkError is returned when a program does not link.
type ProgramLinkError struct {
	Log string
}

func (e *ProgramLinkError) Error() string {
	return fmt.Sprintf("shader program linking failed: %s", e.Log)
}

// Unwrap makes errors.Is(err, videorender.ErrInitialization) hold.
func (e *ProgramLinkError) Unwrap() error {
	return videorender.ErrInitialization
}

func stageName(kind uint32) string {
	switch kind {
	case gl.VERTEX_SHADER:
		return "vertex"
	case gl.FRAGMENT_SHADER:
		return "fragment"
	default:
		return fmt.Sprintf("0x%x", kind)
	}
}

// compileShader compiles one stage. The returned shader must be deleted by
// the caller once linked.
func compileShader(kind uint32, source string) (uint32, error) {
	shader := gl.CreateShader(kind)
	if shader == 0 {
		return 0, &ShaderCompileError{Stage: stageName(kind), Log: "unable to create the shader object"}
	}

	csource, free := gl.Strs(terminate(source))
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, &ShaderCompileError{Stage: stageName(kind), Log: strings.TrimRight(string(log), "\x00")}
	}
	return shader, nil
}

// linkProgram links the given stages. The stages are left for the caller
// to delete.
func linkProgram(shaders ...uint32) (uint32, error) {
	program := gl.CreateProgram()
	if program == 0 {
		return 0, &ProgramLinkError{Log: "unable to create the program object"}
	}
	for _, shader := range shaders {
		gl.AttachShader(program, shader)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetProgramInfoLog(program, logLength, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, &ProgramLinkError{Log: strings.TrimRight(string(log), "\x00")}
	}

	for _, shader := range shaders {
		gl.DetachShader(program, shader)
	}
	return program, nil
}

// createShaderProgram compiles and links a vertex+fragment program.
func createShaderProgram(vertexSource, fragmentSource string) (uint32, error) {
	vertexShader, err := compileShader(gl.VERTEX_SHADER, vertexSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(gl.FRAGMENT_SHADER, fragmentSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	return linkProgram(vertexShader, fragmentShader)
}

func terminate(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

// cstr returns a NUL-terminated name for the gl.Get*Location calls.
func cstr(name string) *uint8 {
	return gl.Str(terminate(name))
}
