package hub

import (
	"context"
	"slices"

	"github.com/DoyleJ11/drawing-board/internal/board"
	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"go.uber.org/zap"
)

// DefaultBoard is the board clients join when they do not name one.
const DefaultBoard = "main"

type HubMsg interface{ isHubMsg() }

// CreateBoard replies nil when Code is already in use.
type CreateBoard struct {
	Code  string
	Reply chan *board.Board
}

type GetBoard struct {
	Code  string
	Reply chan *board.Board
}

// RemoveBoard forgets a board and stops it. Boards send it for themselves
// when they close, so Board is matched too: a newer board that reused the
// code is left alone.
type RemoveBoard struct {
	Code  string
	Board *board.Board
}

type ListBoards struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateBoard) isHubMsg() {}
func (GetBoard) isHubMsg()    {}
func (RemoveBoard) isHubMsg() {}
func (ListBoards) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live boards. Every board shares the same settings.
type Hub struct {
	inbox    chan HubMsg
	boards   map[string]*board.Board
	settings drawing.Settings
	opts     board.Options
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, settings drawing.Settings, opts board.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		boards:   make(map[string]*board.Board),
		settings: settings,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.boards[DefaultBoard] = h.newBoard(DefaultBoard)
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Settings() drawing.Settings { return h.settings }

// Get looks a board up by code. It returns nil if there is none or ctx ends.
func (h *Hub) Get(ctx context.Context, code string) *board.Board {
	reply := make(chan *board.Board, 1)
	return h.request(ctx, GetBoard{Code: code, Reply: reply}, reply)
}

// Create opens a new board under code. It returns nil if code is taken.
func (h *Hub) Create(ctx context.Context, code string) *board.Board {
	reply := make(chan *board.Board, 1)
	return h.request(ctx, CreateBoard{Code: code, Reply: reply}, reply)
}

// List returns the codes of all live boards, sorted.
func (h *Hub) List(ctx context.Context) []string {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- ListBoards{Reply: reply}:
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case codes := <-reply:
		return codes
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) request(ctx context.Context, m HubMsg, reply chan *board.Board) *board.Board {
	select {
	case h.inbox <- m:
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case b := <-reply:
		return b
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) newBoard(code string) *board.Board {
	opts := h.opts
	opts.Logger = h.logger
	opts.OnClose = h.boardClosed
	if code == DefaultBoard {
		opts.IdleTimeout = 0
	}
	h.logger.Info("board created", zap.String("board", code))
	return board.NewBoard(h.ctx, code, h.settings, opts)
}

// boardClosed runs on the closing board's goroutine.
func (h *Hub) boardClosed(b *board.Board) {
	select {
	case h.inbox <- RemoveBoard{Code: b.Code(), Board: b}:
	case <-h.ctx.Done():
	}
}

// stop asks b to shut down without waiting on a board that already has.
func stop(b *board.Board) {
	select {
	case b.Inbox() <- board.Shutdown{}:
	case <-b.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			clear(h.boards) // boards stop with h.ctx
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateBoard:
				if h.boards[msg.Code] != nil {
					msg.Reply <- nil // code taken
					break
				}
				b := h.newBoard(msg.Code)
				h.boards[msg.Code] = b
				msg.Reply <- b

			case GetBoard:
				msg.Reply <- h.boards[msg.Code] // May be nil

			case RemoveBoard:
				if msg.Code == DefaultBoard {
					break
				}
				b := h.boards[msg.Code]
				if b == nil || (msg.Board != nil && msg.Board != b) {
					break
				}
				delete(h.boards, msg.Code)
				stop(b)
				h.logger.Info("board removed", zap.String("board", msg.Code))

			case ListBoards:
				codes := make([]string, 0, len(h.boards))
				for code := range h.boards {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case ShutdownHub:
				for _, b := range h.boards {
					stop(b)
				}
				clear(h.boards)
				h.cancel()
			}
		}
	}
}
