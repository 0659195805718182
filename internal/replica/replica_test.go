package replica

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	events "github.com/DoyleJ11/drawing-board/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = drawing.RGB(255, 0, 0)
	blue  = drawing.RGB(0, 0, 255)
	green = drawing.RGB(0, 200, 0)
)

// grid is a tiny deterministic surface: square brushes, Bresenham lines.
type grid struct {
	w, h int
	px   []drawing.Color
}

func newGrid(w, h int) Surface {
	return &grid{w: w, h: h, px: make([]drawing.Color, w*h)}
}

func (g *grid) Size() (int, int) { return g.w, g.h }

func (g *grid) ColorAt(x, y int) drawing.Color { return g.px[y*g.w+x] }

func (g *grid) SetColor(x, y int, c drawing.Color) {
	if x >= 0 && x < g.w && y >= 0 && y < g.h {
		g.px[y*g.w+x] = c
	}
}

func (g *grid) Clear(c drawing.Color) {
	for i := range g.px {
		g.px[i] = c
	}
}

func (g *grid) Point(p drawing.Position, c drawing.Color, weight float64) error {
	r := int(weight / 2)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			g.SetColor(p.X+dx, p.Y+dy, c)
		}
	}
	return nil
}

func (g *grid) Line(a, b drawing.Position, c drawing.Color, weight float64) error {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	e := dx + dy
	x, y := a.X, a.Y
	for {
		_ = g.Point(drawing.Position{X: x, Y: y}, c, weight)
		if x == b.X && y == b.Y {
			return nil
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func pixels(t *testing.T, r *Replica) []drawing.Color {
	t.Helper()
	return slices.Clone(r.Surface().(*grid).px)
}

func smallSettings() drawing.Settings {
	s := drawing.DefaultSettings()
	s.CanvasWidth, s.CanvasHeight = 40, 30
	return s
}

func welcomed(t *testing.T, log []drawing.Instruction) *Replica {
	t.Helper()
	r := New(newGrid)
	require.NoError(t, r.Apply(protocol.Welcome(smallSettings(), map[string]string{"me": "me"}, log)))
	require.NoError(t, r.Frame())
	return r
}

// script draws a box, fills inside and outside it, then scribbles over the fill.
func script(t *testing.T, r *Replica) {
	t.Helper()
	step := func(msg protocol.ServerMessage) {
		require.NoError(t, r.Apply(msg))
		require.NoError(t, r.Frame())
	}
	local := func(_ protocol.ClientMessage, ok bool) {
		require.True(t, ok)
		require.NoError(t, r.Frame())
	}

	local(r.BeginStroke(drawing.Position{X: 5, Y: 5}, blue, 1))
	for _, p := range []drawing.Position{{X: 20, Y: 5}, {X: 20, Y: 20}, {X: 5, Y: 20}, {X: 5, Y: 5}} {
		local(r.ExtendStroke(p))
	}
	step(protocol.FillEvent(drawing.Fill{Position: drawing.Position{X: 10, Y: 10}, Color: red}))
	step(protocol.NewPathEvent(drawing.Position{X: 0, Y: 25}, green, 3))
	step(protocol.DrawingPositionEvent(drawing.Position{X: 39, Y: 0}))
	local(r.Fill(drawing.Position{X: 35, Y: 25}, blue))
	step(protocol.NewPathEvent(drawing.Position{X: 12, Y: 12}, green, 1))
}

func TestReplica_LiveMatchesReplay(t *testing.T) {
	live := welcomed(t, nil)
	script(t, live)
	livePixels := pixels(t, live)

	require.NoError(t, live.Redraw())
	assert.Equal(t, livePixels, pixels(t, live), "redraw must reproduce live pixels")

	late := welcomed(t, live.Instructions())
	assert.Equal(t, livePixels, pixels(t, late), "late joiner must see the same canvas")
}

func TestReplica_PartialLiveThenLateJoin(t *testing.T) {
	full := welcomed(t, nil)
	script(t, full)
	log := full.Instructions()

	// replay the first half from a welcome, then apply the rest live
	half := len(log) / 2
	r := welcomed(t, log[:half])
	for _, in := range log[half:] {
		switch v := in.(type) {
		case *drawing.Stroke:
			require.NoError(t, r.Apply(protocol.NewPathEvent(v.Path[0], v.Color, v.Weight)))
			for _, p := range v.Path[1:] {
				require.NoError(t, r.Apply(protocol.DrawingPositionEvent(p)))
			}
		case drawing.Fill:
			require.NoError(t, r.Apply(protocol.FillEvent(v)))
		}
		require.NoError(t, r.Frame())
	}
	assert.Equal(t, pixels(t, full), pixels(t, r))
}

func TestReplica_UndoEqualsReplayOfPrefix(t *testing.T) {
	r := welcomed(t, nil)
	script(t, r)
	log := r.Instructions()

	require.NoError(t, r.Apply(protocol.UndoEvent()))
	require.NoError(t, r.Frame())
	assert.Len(t, r.Instructions(), len(log)-1)

	prefix := welcomed(t, log[:len(log)-1])
	assert.Equal(t, pixels(t, prefix), pixels(t, r))
}

func TestReplica_ResetRestoresBackground(t *testing.T) {
	r := welcomed(t, nil)
	script(t, r)

	msg, ok := r.Reset()
	require.True(t, ok)
	assert.Equal(t, events.EventReset, msg.Type)
	require.NoError(t, r.Frame())

	assert.Empty(t, r.Instructions())
	for _, c := range pixels(t, r) {
		require.Equal(t, Background, c)
	}
}

func TestReplica_LocalValidation(t *testing.T) {
	r := New(newGrid)
	_, ok := r.BeginStroke(drawing.Position{X: 1, Y: 1}, red, 5)
	assert.False(t, ok, "nothing can be drawn before the welcome")

	r = welcomed(t, nil)
	_, ok = r.BeginStroke(drawing.Position{X: 41, Y: 1}, red, 5)
	assert.False(t, ok)

	msg, ok := r.BeginStroke(drawing.Position{X: 40, Y: 30}, red, 1000)
	require.True(t, ok)
	assert.Equal(t, 100.0, *msg.Weight, "weight is clamped before sending")

	_, ok = r.Undo()
	assert.True(t, ok)
	_, ok = r.Undo()
	assert.False(t, ok, "nothing left to undo")
}

func TestReplica_RemoteCannotExtendLocalStroke(t *testing.T) {
	r := welcomed(t, nil)
	_, ok := r.BeginStroke(drawing.Position{X: 1, Y: 1}, red, 1)
	require.True(t, ok)

	require.NoError(t, r.Apply(protocol.DrawingPositionEvent(drawing.Position{X: 9, Y: 9})))
	assert.Len(t, r.Instructions()[0].(*drawing.Stroke).Path, 1)
}

func TestReplica_Presence(t *testing.T) {
	r := welcomed(t, nil)
	require.NoError(t, r.Apply(protocol.UserJoined("b", "bob")))
	assert.Equal(t, map[string]string{"me": "me", "b": "bob"}, r.Users())
	require.NoError(t, r.Apply(protocol.UserLeft("b")))
	assert.Equal(t, map[string]string{"me": "me"}, r.Users())

	assert.ErrorIs(t, r.Apply(protocol.ErrorEvent("bad json")), ErrServer)
}

func TestReplica_EventsBeforeWelcomeAreIgnored(t *testing.T) {
	r := New(newGrid)
	require.NoError(t, r.Apply(protocol.UndoEvent()))
	require.NoError(t, r.Apply(protocol.NewPathEvent(drawing.Position{X: 1, Y: 1}, red, 1)))
	assert.False(t, r.Joined())
	assert.Nil(t, r.Instructions())
	assert.NoError(t, r.Frame())
}

func TestReplica_RunDrawsFrames(t *testing.T) {
	r := New(newGrid)
	require.NoError(t, r.Apply(protocol.Welcome(smallSettings(), nil, []drawing.Instruction{
		drawing.Fill{Position: drawing.Position{X: 0, Y: 0}, Color: red},
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)

	assert.Equal(t, 1, r.FillsRendered())
	assert.Equal(t, red, r.Surface().ColorAt(39, 29))
}
