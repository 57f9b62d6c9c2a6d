package hud

// GlyphSize is the width and height of a glyph cell, in font pixels.
const GlyphSize = 8

// 8x8 bitmap glyphs, one byte per row, most significant bit on the left.
// Only what the readouts print is kept.
var glyphs = map[rune][GlyphSize]byte{
	'0': {0x3C, 0x66, 0x6E, 0x76, 0x66, 0x66, 0x3C, 0x00},
	'1': {0x18, 0x38, 0x18, 0x18, 0x18, 0x18, 0x7E, 0x00},
	'2': {0x3C, 0x66, 0x06, 0x1C, 0x30, 0x60, 0x7E, 0x00},
	'3': {0x3C, 0x66, 0x06, 0x1C, 0x06, 0x66, 0x3C, 0x00},
	'4': {0x0C, 0x1C, 0x3C, 0x6C, 0x7E, 0x0C, 0x0C, 0x00},
	'5': {0x7E, 0x60, 0x7C, 0x06, 0x06, 0x66, 0x3C, 0x00},
	'6': {0x1C, 0x30, 0x60, 0x7C, 0x66, 0x66, 0x3C, 0x00},
	'7': {0x7E, 0x06, 0x0C, 0x18, 0x30, 0x30, 0x30, 0x00},
	'8': {0x3C, 0x66, 0x66, 0x3C, 0x66, 0x66, 0x3C, 0x00},
	'9': {0x3C, 0x66, 0x66, 0x3E, 0x06, 0x0C, 0x38, 0x00},
	'A': {0x18, 0x3C, 0x66, 0x66, 0x7E, 0x66, 0x66, 0x00},
	'B': {0x7C, 0x66, 0x66, 0x7C, 0x66, 0x66, 0x7C, 0x00},
	'D': {0x78, 0x6C, 0x66, 0x66, 0x66, 0x6C, 0x78, 0x00},
	'G': {0x3C, 0x66, 0x60, 0x6E, 0x66, 0x66, 0x3E, 0x00},
	'H': {0x66, 0x66, 0x66, 0x7E, 0x66, 0x66, 0x66, 0x00},
	'L': {0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x7E, 0x00},
	'P': {0x7C, 0x66, 0x66, 0x7C, 0x60, 0x60, 0x60, 0x00},
	'S': {0x3C, 0x66, 0x60, 0x3C, 0x06, 0x66, 0x3C, 0x00},
	'T': {0x7E, 0x18, 0x18, 0x18, 0x18, 0x18, 0x18, 0x00},
	'm': {0x00, 0x00, 0x76, 0x7F, 0x6B, 0x6B, 0x63, 0x00},
	's': {0x00, 0x00, 0x3E, 0x60, 0x3C, 0x06, 0x7C, 0x00},
	'.': {0x00, 0x00, 0x00, 0x00, 0x00, 0x18, 0x18, 0x00},
	'-': {0x00, 0x00, 0x00, 0x7E, 0x00, 0x00, 0x00, 0x00},
	'/': {0x02, 0x06, 0x0C, 0x18, 0x30, 0x60, 0x40, 0x00},
	'%': {0x62, 0x64, 0x08, 0x10, 0x26, 0x46, 0x00, 0x00},
}

// TextWidth returns how wide AddText draws text at the given pixel scale.
func TextWidth(text string, scale float32) float32 {
	n := 0
	for range text {
		n++
	}
	return float32(n*GlyphSize) * scale
}

// AddText draws text with its top-left corner at (x, y). Each font pixel
// becomes a scale x scale square; horizontal runs of lit pixels are merged
// into one rectangle. Runes without a glyph advance like a space.
func (b *Batch) AddText(x, y float32, text string, scale float32, color uint32) {
	if scale <= 0 {
		return
	}
	for _, r := range text {
		if g, ok := glyphs[r]; ok {
			b.addGlyph(x, y, g, scale, color)
		}
		x += GlyphSize * scale
	}
}

func (b *Batch) addGlyph(x, y float32, g [GlyphSize]byte, scale float32, color uint32) {
	for row, bits := range g {
		start := -1
		for col := 0; col <= GlyphSize; col++ {
			lit := col < GlyphSize && bits&(0x80>>col) != 0
			switch {
			case lit && start < 0:
				start = col
			case !lit && start >= 0:
				b.AddRect(
					x+float32(start)*scale, y+float32(row)*scale,
					float32(col-start)*scale, scale,
					color,
				)
				start = -1
			}
		}
	}
}
