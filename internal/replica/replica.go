// Package replica mirrors a board's drawing log on the client side and keeps
// a pixel surface in step with it.
package replica

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/floodfill"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	events "github.com/DoyleJ11/drawing-board/pkg/protocol"
)

var ErrNotJoined = errors.New("replica has not received a welcome")
var ErrServer = errors.New("server error")

// Background is the colour a cleared canvas starts with.
var Background = drawing.RGB(255, 255, 255)

const FrameRate = 60

const (
	ownerLocal  = "local"
	ownerRemote = "remote"
)

// Surface is the rendering capability the replica draws through.
type Surface interface {
	floodfill.Canvas
	Clear(c drawing.Color)
	Point(p drawing.Position, c drawing.Color, weight float64) error
	Line(a, b drawing.Position, c drawing.Color, weight float64) error
}

type SurfaceFactory func(width, height int) Surface

type drawOp func(Surface) error

// Replica is safe for concurrent use: network events and the frame loop
// usually run on different goroutines.
type Replica struct {
	mu         sync.Mutex
	newSurface SurfaceFactory
	surface    Surface
	log        *drawing.Log
	users      map[string]string
	pending    []drawOp
	fullRedraw bool
	fills      int
}

func New(newSurface SurfaceFactory) *Replica {
	return &Replica{newSurface: newSurface, users: map[string]string{}}
}

// Apply folds one server event into the replica. Draw events that arrive
// before the welcome are ignored.
func (r *Replica) Apply(msg protocol.ServerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Type {
	case events.EventWelcome:
		if msg.Settings == nil {
			return fmt.Errorf("welcome without settings")
		}
		r.welcome(*msg.Settings, msg.Users, msg.Instructions)
		return nil

	case events.EventUserJoined:
		r.users[msg.ID] = msg.Name
		return nil

	case events.EventUserLeft:
		delete(r.users, msg.ID)
		return nil

	case events.EventError:
		return fmt.Errorf("%w: %s", ErrServer, msg.Error)
	}

	if r.log == nil {
		return nil
	}

	switch msg.Type {
	case events.EventNewPath:
		if msg.Position == nil || msg.Color == nil || msg.Weight == nil {
			return nil
		}
		r.beginStroke(ownerRemote, *msg.Position, *msg.Color, *msg.Weight)
	case events.EventDrawingPosition:
		if msg.Position == nil {
			return nil
		}
		r.extendStroke(ownerRemote, *msg.Position)
	case events.EventFill:
		if msg.Fill == nil {
			return nil
		}
		r.fill(*msg.Fill)
	case events.EventReset:
		r.reset()
	case events.EventUndo:
		r.undo()
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownType, msg.Type)
	}
	return nil
}

func (r *Replica) welcome(settings drawing.Settings, users map[string]string, log []drawing.Instruction) {
	r.log = drawing.NewLog(settings)
	for _, in := range log {
		if s, ok := in.(*drawing.Stroke); ok {
			s = drawing.Clone(s).(*drawing.Stroke)
			s.Owner = ownerRemote
			in = s
		}
		r.log.Append(in)
	}
	r.users = maps.Clone(users)
	if r.users == nil {
		r.users = map[string]string{}
	}

	w, h := settings.CanvasWidth, settings.CanvasHeight
	if r.surface == nil {
		r.surface = r.newSurface(w, h)
	} else if sw, sh := r.surface.Size(); sw != w || sh != h {
		r.surface = r.newSurface(w, h)
	}
	r.pending = nil
	r.fullRedraw = true
}

// BeginStroke opens a local stroke and returns the message to send.
func (r *Replica) BeginStroke(pos drawing.Position, color drawing.Color, weight float64) (protocol.ClientMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return protocol.ClientMessage{}, false
	}
	weight, ok := r.beginStroke(ownerLocal, pos, color, weight)
	if !ok {
		return protocol.ClientMessage{}, false
	}
	return protocol.NewPathCommand(pos, color, weight), true
}

func (r *Replica) ExtendStroke(pos drawing.Position) (protocol.ClientMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil || !r.extendStroke(ownerLocal, pos) {
		return protocol.ClientMessage{}, false
	}
	return protocol.DrawingPositionCommand(pos), true
}

func (r *Replica) Fill(pos drawing.Position, color drawing.Color) (protocol.ClientMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := drawing.Fill{Position: pos, Color: color}
	if r.log == nil || !r.fill(f) {
		return protocol.ClientMessage{}, false
	}
	return protocol.FillCommand(f), true
}

func (r *Replica) Undo() (protocol.ClientMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil || !r.undo() {
		return protocol.ClientMessage{}, false
	}
	return protocol.UndoCommand(), true
}

func (r *Replica) Reset() (protocol.ClientMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return protocol.ClientMessage{}, false
	}
	r.reset()
	return protocol.ResetCommand(), true
}

func (r *Replica) beginStroke(owner string, pos drawing.Position, color drawing.Color, weight float64) (float64, bool) {
	weight, ok := r.log.AppendStroke(owner, pos, color, weight)
	if !ok {
		return 0, false
	}
	r.queue(func(s Surface) error { return s.Point(pos, color, weight) })
	return weight, true
}

func (r *Replica) extendStroke(owner string, pos drawing.Position) bool {
	last, ok := r.log.Last()
	if !ok {
		return false
	}
	stroke, ok := last.(*drawing.Stroke)
	if !ok || len(stroke.Path) == 0 {
		return false
	}
	prev := stroke.Path[len(stroke.Path)-1]
	color, weight := stroke.Color, stroke.Weight
	if !r.log.ExtendStroke(owner, pos) {
		return false
	}
	r.queue(func(s Surface) error { return s.Line(prev, pos, color, weight) })
	return true
}

func (r *Replica) fill(f drawing.Fill) bool {
	if !r.log.AppendFill(f) {
		return false
	}
	r.queue(func(s Surface) error {
		floodfill.Fill(s, f.Position, f.Color)
		r.fills++
		return nil
	})
	return true
}

func (r *Replica) undo() bool {
	if !r.log.Undo() {
		return false
	}
	r.fullRedraw = true
	r.pending = nil
	return true
}

func (r *Replica) reset() {
	r.log.Reset()
	r.fullRedraw = true
	r.pending = nil
}

func (r *Replica) queue(op drawOp) {
	if r.fullRedraw {
		return // the next redraw replays the whole log anyway
	}
	r.pending = append(r.pending, op)
}

// Frame brings the surface up to date: a full replay after a welcome, undo
// or reset, otherwise only what changed since the last frame.
func (r *Replica) Frame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		return nil
	}
	if r.fullRedraw {
		r.fullRedraw = false
		r.pending = nil
		return r.redraw()
	}
	ops := r.pending
	r.pending = nil
	for _, op := range ops {
		if err := op(r.surface); err != nil {
			return err
		}
	}
	return nil
}

// Redraw clears the surface and replays the entire log.
func (r *Replica) Redraw() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		return ErrNotJoined
	}
	r.fullRedraw = false
	r.pending = nil
	return r.redraw()
}

func (r *Replica) redraw() error {
	r.surface.Clear(Background)
	var err error
	r.log.Each(func(in drawing.Instruction) {
		if err != nil {
			return
		}
		err = r.render(in)
	})
	return err
}

func (r *Replica) render(in drawing.Instruction) error {
	switch v := in.(type) {
	case *drawing.Stroke:
		if err := r.surface.Point(v.Path[0], v.Color, v.Weight); err != nil {
			return err
		}
		for i := 1; i < len(v.Path); i++ {
			if err := r.surface.Line(v.Path[i-1], v.Path[i], v.Color, v.Weight); err != nil {
				return err
			}
		}
		return nil
	case drawing.Fill:
		floodfill.Fill(r.surface, v.Position, v.Color)
		r.fills++
		return nil
	default:
		return fmt.Errorf("%w: %T", drawing.ErrUnknownInstruction, in)
	}
}

// Run calls Frame at FrameRate until ctx is done.
func (r *Replica) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / FrameRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Frame(); err != nil {
				return err
			}
		}
	}
}

func (r *Replica) Joined() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log != nil
}

func (r *Replica) Settings() (drawing.Settings, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return drawing.Settings{}, false
	}
	return r.log.Settings(), true
}

func (r *Replica) Users() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.users)
}

func (r *Replica) Instructions() []drawing.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return nil
	}
	return r.log.Snapshot()
}

// Surface returns the surface being drawn on. Callers must not use it
// concurrently with Frame.
func (r *Replica) Surface() Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface
}

// FillsRendered counts flood fills executed so far.
func (r *Replica) FillsRendered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fills
}
