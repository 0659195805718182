package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/board"
	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/hub"
	"github.com/DoyleJ11/drawing-board/internal/protocol"
	"github.com/DoyleJ11/drawing-board/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blue = drawing.RGB(0, 0, 255)

func newServer(t *testing.T) string {
	t.Helper()
	settings := drawing.DefaultSettings()
	settings.CanvasWidth, settings.CanvasHeight = 64, 48

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, settings, board.Options{})
	srv := httptest.NewServer(ws.Handler(h, ws.Options{}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func join(t *testing.T, url, name string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, name, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.WaitWelcome(ctx))
	return c
}

func converged(t *testing.T, a, b *Client) {
	t.Helper()
	require.Eventually(t, func() bool {
		// owners differ between replicas, so compare the wire form
		x, errA := json.Marshal(protocol.Instructions(a.Replica().Instructions()))
		y, errB := json.Marshal(protocol.Instructions(b.Replica().Instructions()))
		return errA == nil && errB == nil && string(x) == string(y)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ReplicasConverge(t *testing.T) {
	url := newServer(t)
	ctx := context.Background()

	alice := join(t, url, "alice")
	bob := join(t, url, "bob")

	require.Eventually(t, func() bool { return len(alice.Replica().Users()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Stroke(ctx, blue, 4,
		drawing.Position{X: 5, Y: 5}, drawing.Position{X: 30, Y: 5}, drawing.Position{X: 30, Y: 20}))
	converged(t, alice, bob)

	stroke := bob.Replica().Instructions()[0].(*drawing.Stroke)
	assert.Len(t, stroke.Path, 3)
	assert.Equal(t, 4.0, stroke.Weight)

	require.NoError(t, bob.Fill(ctx, drawing.Position{X: 60, Y: 40}, drawing.RGB(0, 255, 0)))
	converged(t, alice, bob)
	assert.Len(t, alice.Replica().Instructions(), 2)

	require.NoError(t, alice.Undo(ctx))
	converged(t, alice, bob)
	assert.Len(t, bob.Replica().Instructions(), 1)

	// a late joiner renders the same pixels as a replica that saw it live
	carol := join(t, url, "carol")
	converged(t, alice, carol)
	for _, c := range []*Client{alice, carol} {
		require.NoError(t, c.Replica().Frame())
	}
	assert.Equal(t, alice.Replica().Surface().ColorAt(15, 5), carol.Replica().Surface().ColorAt(15, 5))
	assert.Equal(t, blue, carol.Replica().Surface().ColorAt(15, 5))

	require.NoError(t, carol.Reset(ctx))
	converged(t, alice, carol)
	assert.Empty(t, alice.Replica().Instructions())
}

func TestClient_RejectsInvalidEditsLocally(t *testing.T) {
	url := newServer(t)
	ctx := context.Background()
	c := join(t, url, "solo")

	assert.ErrorIs(t, c.Undo(ctx), ErrRejected)
	assert.ErrorIs(t, c.Fill(ctx, drawing.Position{X: 65, Y: 10}, blue), ErrRejected)
	assert.ErrorIs(t, c.Stroke(ctx, blue, 3, drawing.Position{X: -1, Y: 0}), ErrRejected)
	assert.ErrorIs(t, c.Stroke(ctx, blue, 3), drawing.ErrEmptyPath)
	assert.Empty(t, c.Replica().Instructions())
}

func TestClient_CloseEndsReadLoop(t *testing.T) {
	url := newServer(t)
	c := join(t, url, "brief")
	_ = c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("read loop still running")
	}
}
