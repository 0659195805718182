package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToRow(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := toRow(Entry{Board: "main", ConnectionID: "c1", Name: "ada", Kind: KindJoined, At: at})
	assert.Equal(t, PresenceEvent{Board: "main", ConnectionID: "c1", Name: "ada", Kind: "joined", CreatedAt: at}, row)
}

func TestRecord_DropsWhenFull(t *testing.T) {
	j := newJournal(nil, zap.NewNop(), 1)

	j.Record(Entry{Board: "main", Kind: KindJoined})
	j.Record(Entry{Board: "main", Kind: KindLeft})

	require.Len(t, j.queue, 1)
	e := <-j.queue
	assert.Equal(t, KindJoined, e.Kind)
	assert.False(t, e.At.IsZero(), "record stamps the entry")
}

type fakeStore struct {
	mu      sync.Mutex
	rows    []PresenceEvent
	batches int
	closed  bool
	err     error
}

func (f *fakeStore) insert(_ context.Context, rows []PresenceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	f.batches++
	return nil
}

func (f *fakeStore) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStore) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestRun_FlushesQueueOnCancel(t *testing.T) {
	db := &fakeStore{}
	j := newJournal(db, zap.NewNop(), 8)
	j.Record(Entry{Board: "main", ConnectionID: "c1", Kind: KindJoined})
	j.Record(Entry{Board: "main", ConnectionID: "c2", Kind: KindJoined})
	j.Record(Entry{Board: "main", ConnectionID: "c1", Kind: KindLeft})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))

	require.Len(t, db.rows, 3)
	assert.Equal(t, "c1", db.rows[0].ConnectionID)
	assert.Equal(t, "c2", db.rows[1].ConnectionID)
	assert.Equal(t, "left", db.rows[2].Kind)
	assert.True(t, db.closed)
	assert.Empty(t, j.queue)
}

func TestRun_WritesFullBatchWithoutWaiting(t *testing.T) {
	db := &fakeStore{}
	j := newJournal(db, zap.NewNop(), 2*batchSize)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	for i := 0; i < batchSize; i++ {
		j.Record(Entry{Board: "main", Kind: KindJoined})
	}
	require.Eventually(t, func() bool { return db.written() == batchSize }, 500*time.Millisecond, 5*time.Millisecond)

	j.Record(Entry{Board: "main", Kind: KindDropped})
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("journal did not stop")
	}
	assert.Equal(t, batchSize+1, db.written())
	assert.True(t, db.closed)
}

func TestRun_ReportsWriteFailure(t *testing.T) {
	db := &fakeStore{err: errors.New("connection refused")}
	j := newJournal(db, zap.NewNop(), 8)
	j.Record(Entry{Board: "main", Kind: KindJoined})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := j.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write presence journal")
	assert.True(t, db.closed, "the database is closed even after a failed write")
}
