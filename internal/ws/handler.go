package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/board"
	"github.com/DoyleJ11/drawing-board/internal/hub"
	"github.com/DoyleJ11/drawing-board/internal/metrics"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	leaveTimeout = time.Second
)

type Options struct {
	// OriginPatterns lists extra hosts allowed to open a websocket from a
	// browser. The request's own host is always allowed.
	OriginPatterns []string
	OutboxSize     int
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 256
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("board")
		if code == "" {
			code = hub.DefaultBoard
		}

		b := h.Get(r.Context(), code)
		if b == nil {
			http.Error(w, "board not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Metrics.WebSocketError("accept")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		opts.Metrics.ConnectionOpened()
		defer opts.Metrics.ConnectionClosed()

		c := &connection{
			id:      uuid.NewString(),
			board:   b,
			conn:    conn,
			out:     make(chan protocol.ServerMessage, opts.OutboxSize),
			logger:  logger.With(zap.String("board", code)),
			metrics: opts.Metrics,
		}
		c.logger = c.logger.With(zap.String("client", c.id))
		c.logger.Debug("connected", zap.String("remote", r.RemoteAddr))

		c.serve(r.Context())
	}
}

type connection struct {
	id      string
	board   *board.Board
	conn    *websocket.Conn
	out     chan protocol.ServerMessage
	state   connState
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (c *connection) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Writer goroutine
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx, cancel)
	}()

	c.readLoop(ctx)

	if c.state == stateJoined {
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), leaveTimeout)
		_ = c.board.Send(leaveCtx, board.Leave{ClientID: c.id})
		leaveCancel()
	}
	c.state = c.state.leave()
	cancel()
	<-writerDone
	c.logger.Debug("disconnected")
}

func (c *connection) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.out:
			if !ok {
				// board dropped us or shut down
				cancel()
				_ = c.conn.Close(websocket.StatusGoingAway, "board closed the connection")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.metrics.WebSocketError("write")
				c.logger.Debug("write failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (c *connection) write(ctx context.Context, msg protocol.ServerMessage) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, msg)
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			// Treat clean close/going-away as normal:
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			if !errors.Is(err, context.Canceled) {
				c.metrics.WebSocketError("read")
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			c.reject(ctx, "text frames only")
			continue
		}

		var cm protocol.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.metrics.WebSocketError("bad_json")
			c.reject(ctx, "bad json")
			continue
		}
		if err := cm.Validate(); err != nil {
			c.reject(ctx, err.Error())
			continue
		}

		if err := c.handle(ctx, cm); err != nil {
			return
		}
	}
}

func (c *connection) handle(ctx context.Context, cm protocol.ClientMessage) error {
	// the writer cancels ctx once the board has closed our outbox
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cm.RequiresPresence() {
		next, ok := c.state.join()
		if !ok {
			return nil
		}
		if err := c.board.Send(ctx, board.Join{ClientID: c.id, Name: cm.Name, Outbox: c.out}); err != nil {
			return err
		}
		c.state = next
		return nil
	}

	if !c.state.canDraw() {
		c.metrics.MessageIgnored(cm.Type, "not_joined")
		c.logger.Debug("ignoring message before join", zap.String("type", cm.Type))
		return nil
	}
	return c.board.Send(ctx, board.FromClient{ClientID: c.id, Msg: cm})
}

func (c *connection) reject(ctx context.Context, reason string) {
	if err := c.write(ctx, protocol.ErrorEvent(reason)); err != nil {
		c.logger.Debug("error reply failed", zap.Error(err))
	}
}
