// Package floodfill recolours a 4-connected region of same-coloured pixels.
package floodfill

import "github.com/DoyleJ11/drawing-board/internal/drawing"

// Canvas is the pixel access the fill needs. Coordinates are valid in
// [0, width) x [0, height).
type Canvas interface {
	Size() (width, height int)
	ColorAt(x, y int) drawing.Color
	SetColor(x, y int, c drawing.Color)
}

// Fill floods the region around seed with color and returns the number of
// pixels written. It uses an explicit stack so large regions do not grow
// the goroutine stack.
func Fill(c Canvas, seed drawing.Position, color drawing.Color) int {
	w, h := c.Size()
	if seed.X < 0 || seed.X >= w || seed.Y < 0 || seed.Y >= h {
		return 0
	}

	target := c.ColorAt(seed.X, seed.Y)
	if target == color {
		return 0
	}

	visited := make([]bool, w*h)
	stack := []drawing.Position{seed}
	written := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i := p.Y*w + p.X
		if visited[i] {
			continue
		}
		visited[i] = true

		if c.ColorAt(p.X, p.Y) != target {
			continue
		}
		c.SetColor(p.X, p.Y, color)
		written++

		if p.X > 0 {
			stack = append(stack, drawing.Position{X: p.X - 1, Y: p.Y})
		}
		if p.X < w-1 {
			stack = append(stack, drawing.Position{X: p.X + 1, Y: p.Y})
		}
		if p.Y > 0 {
			stack = append(stack, drawing.Position{X: p.X, Y: p.Y - 1})
		}
		if p.Y < h-1 {
			stack = append(stack, drawing.Position{X: p.X, Y: p.Y + 1})
		}
	}
	return written
}
