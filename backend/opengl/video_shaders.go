package opengl

import (
	"fmt"

	"github.com/go-theft-auto/videorender"
)

const videoVertexSource = `
#version 410 core
in vec2 position;
in vec2 texcoord;

uniform mat4 transform;

out vec2 vTexcoord;

void main() {
    gl_Position = transform * vec4(position, 0.0, 1.0);
    vTexcoord = texcoord;
}
`

const opaqueFragmentSource = `
#version 410 core
in vec2 vTexcoord;

uniform sampler2D plane0;

out vec4 fragColor;

void main() {
    fragColor = texture(plane0, vTexcoord);
}
`

// yuvToRGB is shared by both YUV variants. It is formatted with the
// coefficients from the root package so the CPU reference and the GPU agree.
var yuvToRGB = fmt.Sprintf(`
vec4 yuvToRGB(float y, float u, float v) {
    u -= 0.5;
    v -= 0.5;
    return vec4(
        y + %.3f * v,
        y - %.3f * u - %.3f * v,
        y + %.3f * u,
        1.0);
}
`, videorender.CoeffRV, videorender.CoeffGU, videorender.CoeffGV, videorender.CoeffBU)

var planarFragmentSource = `
#version 410 core
in vec2 vTexcoord;

uniform sampler2D plane0;
uniform sampler2D plane1;
uniform sampler2D plane2;

out vec4 fragColor;
` + yuvToRGB + `
void main() {
    fragColor = yuvToRGB(
        texture(plane0, vTexcoord).r,
        texture(plane1, vTexcoord).r,
        texture(plane2, vTexcoord).r);
}
`

// The chroma plane is uploaded as a two-channel texture: U in red, V in green.
var semiPlanarFragmentSource = `
#version 410 core
in vec2 vTexcoord;

uniform sampler2D plane0;
uniform sampler2D plane1;

out vec4 fragColor;
` + yuvToRGB + `
void main() {
    vec2 uv = texture(plane1, vTexcoord).rg;
    fragColor = yuvToRGB(texture(plane0, vTexcoord).r, uv.r, uv.g);
}
`

// Program variants, one per supported pixel format.
const (
	variantOpaque = iota
	variantPlanar
	variantSemiPlanar
	variantCount
)

var variantNames = [variantCount]string{"opaque", "planar", "semi-planar"}

// variantFor maps a resolved pixel format to its program variant.
func variantFor(format videorender.PixelFormat) (int, bool) {
	switch format {
	case videorender.PixelFormatOpaque:
		return variantOpaque, true
	case videorender.PixelFormatYUV420Planar:
		return variantPlanar, true
	case videorender.PixelFormatYUV420SemiPlanar:
		return variantSemiPlanar, true
	default:
		return 0, false
	}
}

func fragmentSource(variant int) string {
	switch variant {
	case variantOpaque:
		return opaqueFragmentSource
	case variantPlanar:
		return planarFragmentSource
	default:
		return semiPlanarFragmentSource
	}
}

// planeCount is the number of textures a variant samples.
func planeCount(variant int) int {
	switch variant {
	case variantOpaque:
		return 1
	case variantPlanar:
		return 3
	default:
		return 2
	}
}
