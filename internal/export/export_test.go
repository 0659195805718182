package export

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/replica"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings() drawing.Settings {
	s := drawing.DefaultSettings()
	s.CanvasWidth, s.CanvasHeight = 32, 24
	return s
}

func TestRender_EmptyIsBackground(t *testing.T) {
	res, err := Render(settings(), nil)
	require.NoError(t, err)
	assert.Equal(t, replica.Background, res.Surface.ColorAt(0, 0))
	assert.Equal(t, replica.Background, res.Surface.ColorAt(31, 23))
	assert.Zero(t, res.Fills)
}

func TestRender_ReplaysFills(t *testing.T) {
	red := drawing.RGB(255, 0, 0)
	res, err := Render(settings(), []drawing.Instruction{
		drawing.Fill{Position: drawing.Position{X: 3, Y: 3}, Color: red},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fills)
	assert.Equal(t, red, res.Surface.ColorAt(31, 23))
}

func TestPNGAndPDF(t *testing.T) {
	res, err := Render(settings(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, res))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	buf.Reset()
	require.NoError(t, PDF(&buf, res, "main"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
