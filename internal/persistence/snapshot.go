package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradeArena/internal/store"

	"github.com/google/uuid"
)

// SnapshotManager persists full store-state snapshots for warm restarts:
// on startup the service loads the latest snapshot and resumes the event
// sequence from it.
type SnapshotManager struct {
	db *sql.DB
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists the store state at the given event sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, sequence int64, state *store.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO arena.snapshots (snapshot_id, sequence, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), sequence, data, len(data), time.Now().UTC())

	return err
}

// LoadLatestSnapshot returns the most recent snapshot, or (-1, nil, nil)
// for a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (int64, *store.State, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT sequence, data FROM arena.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var sequence int64
	var data []byte
	if err := row.Scan(&sequence, &data); err != nil {
		if err == sql.ErrNoRows {
			return -1, nil, nil
		}
		return 0, nil, fmt.Errorf("load snapshot: %w", err)
	}

	var state store.State
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return sequence, &state, nil
}
