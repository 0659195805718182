package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrUnknownInstruction = errors.New("unknown instruction type")
var ErrEmptyPath = errors.New("stroke path is empty")

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UnmarshalJSON accepts fractional coordinates and floors them.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.X = floorInt(raw.X)
	p.Y = floorInt(raw.Y)
	return nil
}

func floorInt(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(math.Floor(v))
}

// Color is an RGB colour with an optional alpha channel. Alpha defaults to
// 255 and is only written to the wire when the colour is translucent.
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
	Alpha uint8
}

func RGB(r, g, b uint8) Color { return Color{Red: r, Green: g, Blue: b, Alpha: 255} }

func RGBA(r, g, b, a uint8) Color { return Color{Red: r, Green: g, Blue: b, Alpha: a} }

type wireColor struct {
	Red   float64  `json:"red"`
	Green float64  `json:"green"`
	Blue  float64  `json:"blue"`
	Alpha *float64 `json:"alpha,omitempty"`
}

func (c Color) MarshalJSON() ([]byte, error) {
	w := wireColor{Red: float64(c.Red), Green: float64(c.Green), Blue: float64(c.Blue)}
	if c.Alpha != 255 {
		a := float64(c.Alpha)
		w.Alpha = &a
	}
	return json.Marshal(w)
}

// UnmarshalJSON clamps every channel into 0-255.
func (c *Color) UnmarshalJSON(data []byte) error {
	var w wireColor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Red = channel(w.Red)
	c.Green = channel(w.Green)
	c.Blue = channel(w.Blue)
	c.Alpha = 255
	if w.Alpha != nil {
		c.Alpha = channel(*w.Alpha)
	}
	return nil
}

func channel(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

type Kind int

const (
	KindStroke Kind = iota
	KindFill
)

func (k Kind) String() string {
	switch k {
	case KindStroke:
		return "stroke"
	case KindFill:
		return "fill"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Instruction is either a *Stroke or a Fill.
type Instruction interface {
	Kind() Kind
	instruction()
}

type Stroke struct {
	Path   []Position `json:"path"`
	Color  Color      `json:"color"`
	Weight float64    `json:"weight"`

	// Owner is the connection that opened the stroke. Server-side only.
	Owner string `json:"-"`
}

func (*Stroke) Kind() Kind   { return KindStroke }
func (*Stroke) instruction() {}

func (s *Stroke) clone() *Stroke {
	c := *s
	c.Path = append([]Position(nil), s.Path...)
	return &c
}

type Fill struct {
	Position Position `json:"position"`
	Color    Color    `json:"color"`
}

func (Fill) Kind() Kind   { return KindFill }
func (Fill) instruction() {}

type envelope struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalInstruction encodes an instruction as {"type":<kind>,"value":{...}}.
func MarshalInstruction(in Instruction) ([]byte, error) {
	var (
		value []byte
		err   error
	)
	switch v := in.(type) {
	case *Stroke:
		value, err = json.Marshal(v)
	case Fill:
		value, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstruction, in)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: in.Kind(), Value: value})
}

func UnmarshalInstruction(data []byte) (Instruction, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case KindStroke:
		var s Stroke
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return nil, err
		}
		if len(s.Path) == 0 {
			return nil, ErrEmptyPath
		}
		return &s, nil
	case KindFill:
		var f Fill
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, env.Type)
	}
}

// Clone returns a deep copy of a single instruction.
func Clone(in Instruction) Instruction {
	switch v := in.(type) {
	case *Stroke:
		return v.clone()
	case Fill:
		return v
	default:
		panic(fmt.Sprintf("drawing: unhandled instruction %T", in))
	}
}
