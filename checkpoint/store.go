// Package checkpoint persists dialog state snapshots per conversation
// thread so a session can resume after restart. State is stored as
// opaque JSON; the graph package owns its shape.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is one persisted state snapshot. Step increases by one per
// executed graph step within a thread.
type Checkpoint struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Step      int             `json:"step"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the checkpoint persistence boundary.
type Store interface {
	// Save persists one checkpoint. ID and CreatedAt are filled when zero.
	Save(ctx context.Context, cp *Checkpoint) error

	// LoadLatest returns the highest-step checkpoint of a thread, or
	// ErrNotFound.
	LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error)

	// List returns up to limit checkpoints of a thread, newest first.
	List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error)

	// DeleteThread removes all checkpoints of a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases backend resources.
	Close() error
}

func prepare(cp *Checkpoint) {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
}
