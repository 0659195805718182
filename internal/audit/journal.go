// Package audit keeps an append-only journal of presence events (joins and
// leaves) in Postgres. The drawing log itself is never written here.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Kind string

const (
	KindJoined  Kind = "joined"
	KindLeft    Kind = "left"
	KindDropped Kind = "dropped"
)

type Entry struct {
	Board        string
	ConnectionID string
	Name         string
	Kind         Kind
	At           time.Time
}

// PresenceEvent is the persisted row for an Entry.
type PresenceEvent struct {
	ID           uint   `gorm:"primaryKey"`
	Board        string `gorm:"index;size:64"`
	ConnectionID string `gorm:"size:64"`
	Name         string `gorm:"size:128"`
	Kind         string `gorm:"size:16"`
	CreatedAt    time.Time
}

func toRow(e Entry) PresenceEvent {
	return PresenceEvent{
		Board:        e.Board,
		ConnectionID: e.ConnectionID,
		Name:         e.Name,
		Kind:         string(e.Kind),
		CreatedAt:    e.At,
	}
}

const (
	queueSize = 256
	batchSize = 64
)

// store is where batches end up.
type store interface {
	insert(ctx context.Context, rows []PresenceEvent) error
	close() error
}

type gormStore struct{ db *gorm.DB }

func (s gormStore) insert(ctx context.Context, rows []PresenceEvent) error {
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s gormStore) close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close presence journal: %w", err)
	}
	return nil
}

// Journal buffers entries and writes them from a single goroutine so
// callers never wait on the database.
type Journal struct {
	db    store
	queue chan Entry
	log   *zap.Logger
}

func Open(dsn string, log *zap.Logger) (*Journal, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open presence journal: %w", err)
	}
	if err := db.AutoMigrate(&PresenceEvent{}); err != nil {
		return nil, fmt.Errorf("migrate presence journal: %w", err)
	}
	return newJournal(gormStore{db: db}, log, queueSize), nil
}

func newJournal(db store, log *zap.Logger, size int) *Journal {
	return &Journal{db: db, queue: make(chan Entry, size), log: log}
}

// Record enqueues e. When the queue is full the entry is dropped.
func (j *Journal) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case j.queue <- e:
	default:
		j.log.Warn("presence journal full, dropping entry",
			zap.String("board", e.Board), zap.String("kind", string(e.Kind)))
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left and closes the database.
func (j *Journal) Run(ctx context.Context) error {
	batch := make([]PresenceEvent, 0, batchSize)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	flush := func(ctx context.Context) error {
		if len(batch) == 0 {
			return nil
		}
		err := j.db.insert(ctx, batch)
		if err != nil {
			j.log.Error("write presence journal", zap.Int("entries", len(batch)), zap.Error(err))
			err = fmt.Errorf("write presence journal: %w", err)
		}
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-j.queue:
					batch = append(batch, toRow(e))
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := flush(flushCtx)
			cancel()
			return multierr.Append(err, j.db.close())

		case e := <-j.queue:
			batch = append(batch, toRow(e))
			if len(batch) >= batchSize {
				_ = flush(ctx)
			}

		case <-ticker.C:
			_ = flush(ctx)
		}
	}
}
