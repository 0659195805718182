package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	events "github.com/DoyleJ11/drawing-board/pkg/protocol"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrMissingField = errors.New("missing field")

type ClientMessage struct {
	Type     string            `json:"type"`
	Name     string            `json:"name,omitempty"`
	Position *drawing.Position `json:"position,omitempty"`
	Color    *drawing.Color    `json:"color,omitempty"`
	Weight   *float64          `json:"weight,omitempty"`
	Fill     *drawing.Fill     `json:"fill,omitempty"`
}

// Validate checks that the fields a message type needs are present. Range
// checks are left to the drawing log.
func (m ClientMessage) Validate() error {
	switch m.Type {
	case events.EventJoined, events.EventReset, events.EventUndo:
		return nil
	case events.EventNewPath:
		if m.Position == nil || m.Color == nil || m.Weight == nil {
			return fmt.Errorf("%w: new-path needs position, color and weight", ErrMissingField)
		}
		return nil
	case events.EventDrawingPosition:
		if m.Position == nil {
			return fmt.Errorf("%w: drawing-position needs position", ErrMissingField)
		}
		return nil
	case events.EventFill:
		if m.Fill == nil {
			return fmt.Errorf("%w: fill needs fill", ErrMissingField)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// RequiresPresence reports whether the message is only meaningful after the
// connection has joined.
func (m ClientMessage) RequiresPresence() bool {
	return m.Type != events.EventJoined
}

type ServerMessage struct {
	Type         string            `json:"type"`
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	Settings     *drawing.Settings `json:"settings,omitempty"`
	Users        map[string]string `json:"users,omitempty"`
	Instructions Instructions      `json:"instructions,omitempty"`
	Position     *drawing.Position `json:"position,omitempty"`
	Color        *drawing.Color    `json:"color,omitempty"`
	Weight       *float64          `json:"weight,omitempty"`
	Fill         *drawing.Fill     `json:"fill,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// MarshalJSON always writes users and instructions on a welcome, even when
// they are empty, so clients can tell an empty board from a missing field.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	type wire ServerMessage
	if m.Type != events.EventWelcome {
		return json.Marshal(wire(m))
	}
	users := m.Users
	if users == nil {
		users = map[string]string{}
	}
	log := m.Instructions
	if log == nil {
		log = Instructions{}
	}
	return json.Marshal(struct {
		wire
		Users        map[string]string `json:"users"`
		Instructions Instructions      `json:"instructions"`
	}{wire: wire(m), Users: users, Instructions: log})
}

// Instructions is the wire form of a drawing log snapshot.
type Instructions []drawing.Instruction

func (in Instructions) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(in))
	for i, v := range in {
		b, err := drawing.MarshalInstruction(v)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

func (in *Instructions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Instructions, 0, len(raw))
	for i, r := range raw {
		v, err := drawing.UnmarshalInstruction(r)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, v)
	}
	*in = out
	return nil
}

// Server -> client constructors.

func Welcome(settings drawing.Settings, users map[string]string, log []drawing.Instruction) ServerMessage {
	return ServerMessage{Type: events.EventWelcome, Settings: &settings, Users: users, Instructions: log}
}

func UserJoined(id, name string) ServerMessage {
	return ServerMessage{Type: events.EventUserJoined, ID: id, Name: name}
}

func UserLeft(id string) ServerMessage {
	return ServerMessage{Type: events.EventUserLeft, ID: id}
}

func NewPathEvent(pos drawing.Position, color drawing.Color, weight float64) ServerMessage {
	return ServerMessage{Type: events.EventNewPath, Position: &pos, Color: &color, Weight: &weight}
}

func DrawingPositionEvent(pos drawing.Position) ServerMessage {
	return ServerMessage{Type: events.EventDrawingPosition, Position: &pos}
}

func FillEvent(f drawing.Fill) ServerMessage {
	return ServerMessage{Type: events.EventFill, Fill: &f}
}

func ResetEvent() ServerMessage { return ServerMessage{Type: events.EventReset} }

func UndoEvent() ServerMessage { return ServerMessage{Type: events.EventUndo} }

func ErrorEvent(msg string) ServerMessage {
	return ServerMessage{Type: events.EventError, Error: msg}
}

// Client -> server constructors.

func JoinedCommand(name string) ClientMessage {
	return ClientMessage{Type: events.EventJoined, Name: name}
}

func NewPathCommand(pos drawing.Position, color drawing.Color, weight float64) ClientMessage {
	return ClientMessage{Type: events.EventNewPath, Position: &pos, Color: &color, Weight: &weight}
}

func DrawingPositionCommand(pos drawing.Position) ClientMessage {
	return ClientMessage{Type: events.EventDrawingPosition, Position: &pos}
}

func FillCommand(f drawing.Fill) ClientMessage {
	return ClientMessage{Type: events.EventFill, Fill: &f}
}

func ResetCommand() ClientMessage { return ClientMessage{Type: events.EventReset} }

func UndoCommand() ClientMessage { return ClientMessage{Type: events.EventUndo} }
