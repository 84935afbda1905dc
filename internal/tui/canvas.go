// File: internal/tui/canvas.go
package tui

import "strings"

// canvas is a plain rune grid the stage is composed on. Out-of-range writes
// are clipped, so callers can draw geometry that wanders off the parent box.
type canvas struct {
	w, h  int
	cells [][]rune
}

func newCanvas(w, h int) *canvas {
	cells := make([][]rune, h)
	for y := range cells {
		row := make([]rune, w)
		for x := range row {
			row[x] = ' '
		}
		cells[y] = row
	}
	return &canvas{w: w, h: h, cells: cells}
}

func (c *canvas) set(x, y int, r rune) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	c.cells[y][x] = r
}

// border draws the parent box outline along the canvas edges.
func (c *canvas) border() {
	if c.w < 2 || c.h < 2 {
		return
	}
	for x := 1; x < c.w-1; x++ {
		c.set(x, 0, '─')
		c.set(x, c.h-1, '─')
	}
	for y := 1; y < c.h-1; y++ {
		c.set(0, y, '│')
		c.set(c.w-1, y, '│')
	}
	c.set(0, 0, '┌')
	c.set(c.w-1, 0, '┐')
	c.set(0, c.h-1, '└')
	c.set(c.w-1, c.h-1, '┘')
}

// line draws a Bresenham segment, picking a glyph from the step direction.
func (c *canvas) line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if x0 == x1 && y0 == y1 {
			c.set(x0, y0, '•')
			return
		}
		e2 := 2 * err
		nx, ny := x0, y0
		if e2 >= dy {
			err += dy
			nx += sx
		}
		if e2 <= dx {
			err += dx
			ny += sy
		}
		glyph := '•'
		switch {
		case nx != x0 && ny != y0:
			if (nx-x0)*(ny-y0) > 0 {
				glyph = '╲'
			} else {
				glyph = '╱'
			}
		case nx != x0:
			glyph = '─'
		case ny != y0:
			glyph = '│'
		}
		x0, y0 = nx, ny
		c.set(x0, y0, glyph)
	}
}

func (c *canvas) String() string {
	lines := make([]string, c.h)
	for y, row := range c.cells {
		lines[y] = string(row)
	}
	return strings.Join(lines, "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
