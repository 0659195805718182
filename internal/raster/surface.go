// Package raster provides the pixel surface strokes and fills are drawn on.
package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/gogpu/gg"
)

// Surface is a software-rendered RGBA canvas. It is not safe for
// concurrent use.
type Surface struct {
	width  int
	height int
	pm     *gg.Pixmap
	dc     *gg.Context
}

func New(width, height int) *Surface {
	pm := gg.NewPixmap(width, height)
	dc := gg.NewContext(width, height, gg.WithPixmap(pm))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	return &Surface{width: width, height: height, pm: pm, dc: dc}
}

func (s *Surface) Size() (int, int) { return s.width, s.height }

func (s *Surface) Clear(c drawing.Color) {
	s.dc.ClearWithColor(toRGBA(c))
}

func (s *Surface) ColorAt(x, y int) drawing.Color {
	i := s.offset(x, y)
	if i < 0 {
		return drawing.Color{}
	}
	d := s.pm.Data()
	return drawing.RGBA(d[i], d[i+1], d[i+2], d[i+3])
}

func (s *Surface) SetColor(x, y int, c drawing.Color) {
	i := s.offset(x, y)
	if i < 0 {
		return
	}
	d := s.pm.Data()
	d[i], d[i+1], d[i+2], d[i+3] = c.Red, c.Green, c.Blue, c.Alpha
}

func (s *Surface) offset(x, y int) int {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return -1
	}
	return (y*s.width + x) * 4
}

// Point draws a dot whose diameter is weight.
func (s *Surface) Point(p drawing.Position, c drawing.Color, weight float64) error {
	s.dc.SetColor(toNRGBA(c))
	s.dc.DrawPoint(float64(p.X), float64(p.Y), weight/2)
	return s.dc.Fill()
}

// Line draws a round-capped segment from a to b.
func (s *Surface) Line(a, b drawing.Position, c drawing.Color, weight float64) error {
	s.dc.SetColor(toNRGBA(c))
	s.dc.SetLineWidth(weight)
	s.dc.DrawLine(float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
	return s.dc.Stroke()
}

func (s *Surface) Image() *image.RGBA {
	_ = s.dc.FlushGPU()
	return s.pm.ToImage()
}

func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Image())
}

func toNRGBA(c drawing.Color) color.NRGBA {
	return color.NRGBA{R: c.Red, G: c.Green, B: c.Blue, A: c.Alpha}
}

func toRGBA(c drawing.Color) gg.RGBA {
	return gg.RGBA2(float64(c.Red)/255, float64(c.Green)/255, float64(c.Blue)/255, float64(c.Alpha)/255)
}
