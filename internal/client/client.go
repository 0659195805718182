// Package client is a headless drawing board client. It keeps a replica in
// step with the server and sends local edits the way a browser would.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	"github.com/DoyleJ11/drawing-board/internal/raster"
	"github.com/DoyleJ11/drawing-board/internal/replica"
	events "github.com/DoyleJ11/drawing-board/pkg/protocol"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// ErrRejected is returned when the replica refuses a local edit, for example
// a point off the canvas or an undo on an empty log. Nothing is sent.
var ErrRejected = errors.New("edit rejected locally")

type Options struct {
	Logger *zap.Logger
	// Surface defaults to a raster surface.
	Surface replica.SurfaceFactory
}

type Client struct {
	conn    *websocket.Conn
	replica *replica.Replica
	logger  *zap.Logger

	welcomed chan struct{}
	once     sync.Once
	done     chan struct{}
	err      error
}

func rasterSurface(width, height int) replica.Surface {
	return raster.New(width, height)
}

// Dial connects to a board's websocket URL and joins it as name.
func Dial(ctx context.Context, url, name string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Surface == nil {
		opts.Surface = rasterSurface
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(64 << 20) // a welcome carries the whole log

	c := &Client{
		conn:     conn,
		replica:  replica.New(opts.Surface),
		logger:   opts.Logger,
		welcomed: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	if err := c.send(ctx, protocol.JoinedCommand(name)); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	ctx := context.Background()
	for {
		var msg protocol.ServerMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.err = err
			}
			return
		}
		if err := c.replica.Apply(msg); err != nil {
			c.logger.Warn("server event not applied", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		if msg.Type == events.EventWelcome {
			c.once.Do(func() { close(c.welcomed) })
		}
	}
}

// WaitWelcome blocks until the server has sent the initial state.
func (c *Client) WaitWelcome(ctx context.Context) error {
	select {
	case <-c.welcomed:
		return nil
	case <-c.done:
		if c.err != nil {
			return c.err
		}
		return errors.New("connection closed before welcome")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Replica() *replica.Replica { return c.replica }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended. It is only meaningful after Done.
func (c *Client) Err() error { return c.err }

// Stroke draws a polyline through points using the given colour and weight.
func (c *Client) Stroke(ctx context.Context, color drawing.Color, weight float64, points ...drawing.Position) error {
	if len(points) == 0 {
		return drawing.ErrEmptyPath
	}
	msg, ok := c.replica.BeginStroke(points[0], color, weight)
	if !ok {
		return ErrRejected
	}
	if err := c.send(ctx, msg); err != nil {
		return err
	}
	for _, p := range points[1:] {
		msg, ok := c.replica.ExtendStroke(p)
		if !ok {
			return ErrRejected
		}
		if err := c.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Fill(ctx context.Context, pos drawing.Position, color drawing.Color) error {
	return c.local(ctx, func() (protocol.ClientMessage, bool) { return c.replica.Fill(pos, color) })
}

func (c *Client) Undo(ctx context.Context) error {
	return c.local(ctx, c.replica.Undo)
}

func (c *Client) Reset(ctx context.Context) error {
	return c.local(ctx, c.replica.Reset)
}

func (c *Client) local(ctx context.Context, edit func() (protocol.ClientMessage, bool)) error {
	msg, ok := edit()
	if !ok {
		return ErrRejected
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg protocol.ClientMessage) error {
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Close leaves the board and waits for the read loop to finish.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	return err
}
