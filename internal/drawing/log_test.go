package drawing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = RGB(255, 0, 0)

func TestAppendStroke_ClampsWeight(t *testing.T) {
	cases := []struct {
		name   string
		weight float64
		want   float64
	}{
		{name: "below minimum", weight: -4, want: 1},
		{name: "above maximum", weight: 250, want: 100},
		{name: "in range", weight: 5, want: 5},
		{name: "on bound", weight: 100, want: 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLog(DefaultSettings())
			got, ok := l.AppendStroke("a", Position{X: 1, Y: 1}, red, tc.weight)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)

			snap := l.Snapshot()
			require.Len(t, snap, 1)
			assert.Equal(t, tc.want, snap[0].(*Stroke).Weight)
		})
	}
}

func TestAppendStroke_RejectsOutOfBounds(t *testing.T) {
	cases := []struct {
		name string
		pos  Position
		ok   bool
	}{
		{name: "origin", pos: Position{0, 0}, ok: true},
		{name: "far corner is inside", pos: Position{700, 700}, ok: true},
		{name: "negative x", pos: Position{-1, 5}, ok: false},
		{name: "past width", pos: Position{701, 5}, ok: false},
		{name: "past height", pos: Position{5, 701}, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLog(DefaultSettings())
			_, ok := l.AppendStroke("a", tc.pos, red, 5)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, 1, l.Len())
			} else {
				assert.Equal(t, 0, l.Len())
			}
		})
	}
}

func TestExtendStroke(t *testing.T) {
	l := NewLog(DefaultSettings())
	_, ok := l.AppendStroke("a", Position{10, 10}, red, 5)
	require.True(t, ok)

	assert.True(t, l.ExtendStroke("a", Position{20, 10}))
	assert.False(t, l.ExtendStroke("a", Position{20, 900}), "out of bounds is dropped")
	assert.False(t, l.ExtendStroke("b", Position{30, 10}), "another connection cannot extend")

	s := l.Snapshot()[0].(*Stroke)
	assert.Equal(t, []Position{{10, 10}, {20, 10}}, s.Path)
	assert.Equal(t, red, s.Color)
	assert.Equal(t, 5.0, s.Weight)
}

func TestExtendStroke_StopsAfterUndoOrFill(t *testing.T) {
	l := NewLog(DefaultSettings())
	_, _ = l.AppendStroke("a", Position{1, 1}, red, 5)
	require.True(t, l.Undo())
	assert.False(t, l.ExtendStroke("a", Position{2, 2}))

	_, _ = l.AppendStroke("a", Position{1, 1}, red, 5)
	require.True(t, l.AppendFill(Fill{Position: Position{3, 3}, Color: red}))
	assert.False(t, l.ExtendStroke("a", Position{2, 2}))
	assert.Len(t, l.Snapshot()[0].(*Stroke).Path, 1)
}

func TestUndo(t *testing.T) {
	l := NewLog(DefaultSettings())
	assert.False(t, l.Undo(), "undo on empty log is a no-op")
	assert.Equal(t, 0, l.Len())

	_, _ = l.AppendStroke("a", Position{1, 1}, red, 5)
	l.AppendFill(Fill{Position: Position{2, 2}, Color: red})
	_, _ = l.AppendStroke("b", Position{3, 3}, red, 5)
	before := l.Snapshot()

	require.True(t, l.Undo())
	assert.Equal(t, before[:2], l.Snapshot())
}

func TestReset(t *testing.T) {
	l := NewLog(DefaultSettings())
	_, _ = l.AppendStroke("a", Position{1, 1}, red, 5)
	l.AppendFill(Fill{Position: Position{2, 2}, Color: red})
	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Snapshot())
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	l := NewLog(DefaultSettings())
	_, _ = l.AppendStroke("a", Position{1, 1}, red, 5)
	snap := l.Snapshot()
	l.ExtendStroke("a", Position{2, 2})
	assert.Len(t, snap[0].(*Stroke).Path, 1)
}

func TestInstructionCodec(t *testing.T) {
	stroke := &Stroke{Path: []Position{{10, 10}, {20, 10}}, Color: red, Weight: 5, Owner: "conn"}
	data, err := MarshalInstruction(stroke)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":0,"value":{"path":[{"x":10,"y":10},{"x":20,"y":10}],"color":{"red":255,"green":0,"blue":0},"weight":5}}`, string(data))

	back, err := UnmarshalInstruction(data)
	require.NoError(t, err)
	stroke.Owner = ""
	assert.Equal(t, stroke, back)

	fill := Fill{Position: Position{4, 4}, Color: RGBA(0, 0, 255, 128)}
	data, err = MarshalInstruction(fill)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":1,"value":{"position":{"x":4,"y":4},"color":{"red":0,"green":0,"blue":255,"alpha":128}}}`, string(data))

	_, err = UnmarshalInstruction([]byte(`{"type":7,"value":{}}`))
	assert.True(t, errors.Is(err, ErrUnknownInstruction))

	_, err = UnmarshalInstruction([]byte(`{"type":0,"value":{"path":[],"color":{"red":1,"green":1,"blue":1},"weight":1}}`))
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestColorDecode_ClampsChannels(t *testing.T) {
	var c Color
	require.NoError(t, json.Unmarshal([]byte(`{"red":300,"green":-5,"blue":12.4}`), &c))
	assert.Equal(t, RGB(255, 0, 12), c)
}

func TestPositionDecode_FloorsFractions(t *testing.T) {
	var p Position
	require.NoError(t, json.Unmarshal([]byte(`{"x":10.9,"y":-0.5}`), &p))
	assert.Equal(t, Position{X: 10, Y: -1}, p)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	s.WeightSliderMinimum = 200
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s = DefaultSettings()
	s.CanvasWidth = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}
