// Package hud builds the telemetry overlay geometry drawn on top of the
// video. It produces colored triangles in pixel coordinates (origin at the
// top-left corner) and does not touch the GPU.
package hud

import (
	"math"
	"sync"
)

// Vertex is one corner of a HUD triangle.
type Vertex struct {
	Pos   [2]float32 // Position (x, y) in pixels
	Color uint32     // RGBA packed color
}

// Color constants (RGBA packed as 0xAABBGGRR for OpenGL compatibility)
const (
	ColorWhite       uint32 = 0xFFFFFFFF
	ColorBlack       uint32 = 0xFF000000
	ColorRed         uint32 = 0xFF0000FF
	ColorGreen       uint32 = 0xFF00FF00
	ColorYellow      uint32 = 0xFF00FFFF
	ColorCyan        uint32 = 0xFFFFFF00
	ColorTransparent uint32 = 0x00000000
)

// RGBA creates a packed color from individual components (0-255).
func RGBA(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

var batchPool = sync.Pool{
	New: func() any {
		return &Batch{
			Vertices: make([]Vertex, 0, 512),
			Indices:  make([]uint16, 0, 1024),
		}
	},
}

// AcquireBatch gets an empty Batch from the pool.
// Call ReleaseBatch when done to return it.
func AcquireBatch() *Batch {
	b := batchPool.Get().(*Batch)
	b.Clear()
	return b
}

// ReleaseBatch returns a Batch to the pool for reuse.
func ReleaseBatch(b *Batch) {
	if b != nil {
		batchPool.Put(b)
	}
}

// Batch accumulates indexed triangles for one overlay pass.
type Batch struct {
	Vertices []Vertex
	Indices  []uint16
}

// Clear empties the batch, keeping its capacity.
func (b *Batch) Clear() {
	b.Vertices = b.Vertices[:0]
	b.Indices = b.Indices[:0]
}

// Empty returns true if nothing was added since the last Clear.
func (b *Batch) Empty() bool {
	return len(b.Indices) == 0
}

// MaxVertices is the most vertices a batch can address with uint16 indices.
// Primitives that would go past it are dropped.
const MaxVertices = math.MaxUint16 + 1

func (b *Batch) room(n int) bool {
	return len(b.Vertices)+n <= MaxVertices
}

func (b *Batch) addVertices(verts ...Vertex) uint16 {
	start := uint16(len(b.Vertices))
	b.Vertices = append(b.Vertices, verts...)
	return start
}

func (b *Batch) addQuad(p0, p1, p2, p3 [2]float32, color uint32) {
	if !b.room(4) {
		return
	}
	idx := b.addVertices(
		Vertex{Pos: p0, Color: color},
		Vertex{Pos: p1, Color: color},
		Vertex{Pos: p2, Color: color},
		Vertex{Pos: p3, Color: color},
	)
	b.Indices = append(b.Indices, idx, idx+1, idx+2, idx, idx+2, idx+3)
}

// AddRect draws a filled rectangle.
func (b *Batch) AddRect(x, y, w, h float32, color uint32) {
	if color&0xFF000000 == 0 || w <= 0 || h <= 0 {
		return
	}
	b.addQuad(
		[2]float32{x, y},
		[2]float32{x + w, y},
		[2]float32{x + w, y + h},
		[2]float32{x, y + h},
		color,
	)
}

// AddRectOutline draws a rectangle outline.
func (b *Batch) AddRectOutline(x, y, w, h float32, color uint32, thickness float32) {
	if color&0xFF000000 == 0 {
		return
	}

	b.AddRect(x, y, w, thickness, color)
	b.AddRect(x, y+h-thickness, w, thickness, color)
	b.AddRect(x, y+thickness, thickness, h-2*thickness, color)
	b.AddRect(x+w-thickness, y+thickness, thickness, h-2*thickness, color)
}

// AddLine draws a line between two points as a quad of the given thickness.
func (b *Batch) AddLine(x1, y1, x2, y2 float32, color uint32, thickness float32) {
	if color&0xFF000000 == 0 {
		return
	}

	dx := x2 - x1
	dy := y2 - y1
	inv := float32(1)
	if dx != 0 || dy != 0 {
		inv = 1 / float32(math.Sqrt(float64(dx*dx+dy*dy)))
	}

	// Normal perpendicular to the line
	nx := -dy * inv * thickness * 0.5
	ny := dx * inv * thickness * 0.5

	b.addQuad(
		[2]float32{x1 + nx, y1 + ny},
		[2]float32{x2 + nx, y2 + ny},
		[2]float32{x2 - nx, y2 - ny},
		[2]float32{x1 - nx, y1 - ny},
		color,
	)
}

// AddTriangle draws a filled triangle.
func (b *Batch) AddTriangle(x1, y1, x2, y2, x3, y3 float32, color uint32) {
	if color&0xFF000000 == 0 || !b.room(3) {
		return
	}

	idx := b.addVertices(
		Vertex{Pos: [2]float32{x1, y1}, Color: color},
		Vertex{Pos: [2]float32{x2, y2}, Color: color},
		Vertex{Pos: [2]float32{x3, y3}, Color: color},
	)
	b.Indices = append(b.Indices, idx, idx+1, idx+2)
}

// AddCircle draws a circle outline with the given number of segments.
func (b *Batch) AddCircle(cx, cy, radius float32, color uint32, thickness float32, segments int) {
	if segments < 3 {
		segments = 3
	}
	step := 2 * math.Pi / float64(segments)
	px, py := cx+radius, cy
	for i := 1; i <= segments; i++ {
		s, c := math.Sincos(step * float64(i))
		x := cx + radius*float32(c)
		y := cy + radius*float32(s)
		b.AddLine(px, py, x, y, color, thickness)
		px, py = x, y
	}
}
