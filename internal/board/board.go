package board

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/audit"
	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/metrics"
	"github.com/DoyleJ11/drawing-board/internal/presence"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	events "github.com/DoyleJ11/drawing-board/pkg/protocol"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("board closed")

type Msg interface{ isBoardMsg() }

// Join registers a connection under a display name. The board answers on
// Outbox with a welcome message, then with every event other clients cause.
type Join struct {
	ClientID string
	Name     string
	Outbox   chan protocol.ServerMessage
}

func (Join) isBoardMsg() {}

type Leave struct{ ClientID string }

func (Leave) isBoardMsg() {}

type FromClient struct {
	ClientID string
	Msg      protocol.ClientMessage
}

func (FromClient) isBoardMsg() {}

type Shutdown struct{}

func (Shutdown) isBoardMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isBoardMsg() {}

// View is a copy of the board state, safe to read from any goroutine.
type View struct {
	Code         string
	Version      int
	NumClients   int
	Settings     drawing.Settings
	Users        map[string]string
	Instructions []drawing.Instruction
}

// Recorder receives presence events. *audit.Journal implements it.
type Recorder interface {
	Record(audit.Entry)
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Journal Recorder
	// IdleTimeout closes the board once it has had no users for this long.
	// Zero keeps it open until shutdown.
	IdleTimeout time.Duration
	// OnClose runs on the board goroutine after the board has stopped.
	OnClose func(*Board)
}

// Board owns one drawing log and its presence store. All mutation happens on
// the loop goroutine, one message at a time, so every client sees events in
// the order they were applied.
type Board struct {
	code    string
	inbox   chan Msg
	log     *drawing.Log
	users   *presence.Store
	clients map[string]chan protocol.ServerMessage
	// dropped holds clients cut off for being slow. Their outbox is closed,
	// so nothing more is accepted from them until their connection leaves.
	dropped map[string]struct{}
	version int
	ctx     context.Context
	cancel  context.CancelFunc

	idleTimeout time.Duration
	idle        *time.Timer
	idleC       <-chan time.Time
	onClose     func(*Board)

	logger  *zap.Logger
	metrics *metrics.Metrics
	journal Recorder
}

func NewBoard(parent context.Context, code string, settings drawing.Settings, opts Options) *Board {
	ctx, cancel := context.WithCancel(parent)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Board{
		code:    code,
		inbox:   make(chan Msg, 64),
		log:     drawing.NewLog(settings),
		users:   presence.NewStore(),
		clients: make(map[string]chan protocol.ServerMessage),
		dropped: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("board", code)),
		metrics: opts.Metrics,
		journal: opts.Journal,

		idleTimeout: opts.IdleTimeout,
		onClose:     opts.OnClose,
	}

	b.metrics.BoardOpened()
	b.armIdle()
	go b.loop()
	return b
}

func (b *Board) Code() string { return b.code }

// Inbox exposes the board's message queue to the websocket layer and tests.
func (b *Board) Inbox() chan<- Msg { return b.inbox }

func (b *Board) Done() <-chan struct{} { return b.ctx.Done() }

// Send queues m unless ctx ends or the board has shut down first.
func (b *Board) Send(ctx context.Context, m Msg) error {
	select {
	case <-b.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case b.inbox <- m:
		return nil
	case <-b.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := b.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-b.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (b *Board) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Join:
				b.join(msg)

			case Leave:
				b.leave(msg.ClientID)

			case FromClient:
				b.apply(msg.ClientID, msg.Msg)

			case GetState:
				msg.Reply <- View{
					Code:         b.code,
					Version:      b.version,
					NumClients:   len(b.clients),
					Settings:     b.log.Settings(),
					Users:        b.users.Snapshot(),
					Instructions: b.log.Snapshot(),
				}

			case Shutdown:
				b.shutdown()
				return
			}

		case <-b.idleC:
			if b.users.Len() == 0 && len(b.clients) == 0 {
				b.logger.Info("closing idle board", zap.Duration("idle", b.idleTimeout))
				b.shutdown()
				return
			}
			b.idleC = nil
		}
	}
}

func (b *Board) join(msg Join) {
	if _, gone := b.dropped[msg.ClientID]; gone {
		b.ignore(msg.ClientID, events.EventJoined, "dropped")
		return
	}
	if prev, ok := b.clients[msg.ClientID]; ok && prev != msg.Outbox {
		close(prev)
	}
	name := b.users.Join(msg.ClientID, msg.Name)
	b.clients[msg.ClientID] = msg.Outbox

	b.logger.Info("user joined", zap.String("client", msg.ClientID), zap.String("name", name))
	b.record(msg.ClientID, name, audit.KindJoined)
	b.metrics.SetUsers(b.code, b.users.Len())
	b.disarmIdle()

	if !b.send(msg.ClientID, protocol.Welcome(b.log.Settings(), b.users.Snapshot(), b.log.Snapshot())) {
		return
	}
	b.broadcast(msg.ClientID, protocol.UserJoined(msg.ClientID, name))
}

func (b *Board) leave(id string) {
	delete(b.dropped, id)
	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
	name, _ := b.users.Name(id)
	if !b.users.Leave(id) {
		return
	}
	b.logger.Info("user left", zap.String("client", id), zap.String("name", name))
	b.record(id, name, audit.KindLeft)
	b.metrics.SetUsers(b.code, b.users.Len())
	b.broadcast(id, protocol.UserLeft(id))
	b.armIdle()
}

// apply runs one client message against the log and rebroadcasts the
// authoritative result. Rejected input is dropped without reply.
func (b *Board) apply(id string, msg protocol.ClientMessage) {
	if !b.users.Has(id) {
		b.ignore(id, msg.Type, "not_joined")
		return
	}
	if err := msg.Validate(); err != nil {
		b.ignore(id, msg.Type, "invalid")
		return
	}

	var out protocol.ServerMessage
	switch msg.Type {
	case events.EventNewPath:
		weight, ok := b.log.AppendStroke(id, *msg.Position, *msg.Color, *msg.Weight)
		if !ok {
			b.ignore(id, msg.Type, "out_of_bounds")
			return
		}
		out = protocol.NewPathEvent(*msg.Position, *msg.Color, weight)

	case events.EventDrawingPosition:
		if !b.log.ExtendStroke(id, *msg.Position) {
			b.ignore(id, msg.Type, "no_open_stroke")
			return
		}
		out = protocol.DrawingPositionEvent(*msg.Position)

	case events.EventFill:
		if !b.log.AppendFill(*msg.Fill) {
			b.ignore(id, msg.Type, "out_of_bounds")
			return
		}
		out = protocol.FillEvent(*msg.Fill)

	case events.EventReset:
		b.log.Reset()
		out = protocol.ResetEvent()

	case events.EventUndo:
		if !b.log.Undo() {
			b.ignore(id, msg.Type, "empty_log")
			return
		}
		out = protocol.UndoEvent()

	default:
		b.ignore(id, msg.Type, "unsupported")
		return
	}

	b.version++
	b.metrics.MessageApplied(msg.Type)
	b.metrics.SetLogLength(b.code, b.log.Len())
	b.broadcast(id, out)
}

func (b *Board) ignore(id, msgType, reason string) {
	b.metrics.MessageIgnored(msgType, reason)
	b.logger.Debug("message ignored",
		zap.String("client", id), zap.String("type", msgType), zap.String("reason", reason))
}

// send delivers to one client, dropping it if its outbox is full.
func (b *Board) send(id string, msg protocol.ServerMessage) bool {
	ch, ok := b.clients[id]
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		b.drop(id)
		return false
	}
}

// broadcast delivers msg to every client except sender.
func (b *Board) broadcast(sender string, msg protocol.ServerMessage) {
	var slow []string
	for id, ch := range b.clients {
		if id == sender {
			continue
		}
		select {
		case ch <- msg:
			//ok
		default:
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		b.drop(id)
	}
}

// drop disconnects a client that cannot keep up. Closing its outbox tells
// the connection to hang up.
func (b *Board) drop(id string) {
	ch, ok := b.clients[id]
	if !ok {
		return
	}
	close(ch)
	delete(b.clients, id)
	b.dropped[id] = struct{}{}
	b.metrics.SlowClientDropped()

	name, _ := b.users.Name(id)
	if !b.users.Leave(id) {
		return
	}
	b.logger.Warn("dropped slow client", zap.String("client", id), zap.String("name", name))
	b.record(id, name, audit.KindDropped)
	b.metrics.SetUsers(b.code, b.users.Len())
	b.broadcast(id, protocol.UserLeft(id))
	b.armIdle()
}

// armIdle starts the idle countdown when nobody is on the board.
func (b *Board) armIdle() {
	if b.idleTimeout <= 0 || b.users.Len() > 0 {
		return
	}
	if b.idle == nil {
		b.idle = time.NewTimer(b.idleTimeout)
	} else {
		b.idle.Reset(b.idleTimeout)
	}
	b.idleC = b.idle.C
}

func (b *Board) disarmIdle() {
	if b.idle != nil {
		b.idle.Stop()
	}
	b.idleC = nil
}

func (b *Board) record(id, name string, kind audit.Kind) {
	if b.journal == nil {
		return
	}
	b.journal.Record(audit.Entry{Board: b.code, ConnectionID: id, Name: name, Kind: kind})
}

func (b *Board) shutdown() {
	for id, ch := range b.clients {
		close(ch) // no more events for this client
		delete(b.clients, id)
	}
	b.disarmIdle()
	b.metrics.BoardClosed(b.code)
	b.cancel()
	if b.onClose != nil {
		b.onClose(b)
	}
}
