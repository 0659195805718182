// Package export renders a board snapshot to PNG or PDF by replaying it the
// same way a client does.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	"github.com/DoyleJ11/drawing-board/internal/raster"
	"github.com/DoyleJ11/drawing-board/internal/replica"
	"github.com/jung-kurt/gofpdf"
)

// Result is a rendered canvas plus how many flood fills the replay ran.
type Result struct {
	Surface *raster.Surface
	Fills   int
}

func NewSurface(width, height int) replica.Surface {
	return raster.New(width, height)
}

func Render(settings drawing.Settings, log []drawing.Instruction) (Result, error) {
	r := replica.New(NewSurface)
	if err := r.Apply(protocol.Welcome(settings, nil, log)); err != nil {
		return Result{}, err
	}
	if err := r.Frame(); err != nil {
		return Result{}, fmt.Errorf("render canvas: %w", err)
	}
	return Result{Surface: r.Surface().(*raster.Surface), Fills: r.FillsRendered()}, nil
}

func PNG(w io.Writer, res Result) error {
	return res.Surface.EncodePNG(w)
}

// PDF writes a single page the size of the canvas, one point per pixel.
func PDF(w io.Writer, res Result, title string) error {
	var img bytes.Buffer
	if err := res.Surface.EncodePNG(&img); err != nil {
		return err
	}

	width, height := res.Surface.Size()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: float64(width), Ht: float64(height)},
	})
	pdf.SetTitle(title, true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", opts, &img)
	pdf.ImageOptions("canvas", 0, 0, float64(width), float64(height), false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
