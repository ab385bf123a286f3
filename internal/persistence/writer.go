package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes events and transfer rows to Postgres using
// multi-row INSERT with ON CONFLICT DO NOTHING, so replays after a crash
// are idempotent.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is a row in arena.events.
type EventRow struct {
	Sequence      int64
	EventID       string
	EventType     string
	CompetitionID int64
	Caller        string
	Payload       []byte // JSON-encoded event payload
	Timestamp     time.Time
}

// TransferRow is a row in arena.transfers: one asset movement tied to the
// event that caused it.
type TransferRow struct {
	TransferID    string
	Sequence      int64
	CompetitionID int64
	Asset         string
	FromAddr      string
	ToAddr        string
	Amount        string // decimal string
	Kind          string
	Timestamp     int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO arena.events
		(sequence, event_id, event_type, competition_id, caller, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.CompetitionID,
			e.Caller, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteTransferBatch writes a batch of transfer rows inside tx.
func (w *EventLogWriter) WriteTransferBatch(ctx context.Context, tx *sql.Tx, transfers []TransferRow) error {
	if len(transfers) == 0 {
		return nil
	}

	query := `INSERT INTO arena.transfers
		(transfer_id, sequence, competition_id, asset, from_addr, to_addr, amount, kind, timestamp)
		VALUES `

	values := make([]string, 0, len(transfers))
	args := make([]interface{}, 0, len(transfers)*9)

	for i, tr := range transfers {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			tr.TransferID, tr.Sequence, tr.CompetitionID, tr.Asset,
			tr.FromAddr, tr.ToAddr, tr.Amount, tr.Kind, tr.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (transfer_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LatestSequence returns the highest persisted sequence, or -1 for an
// empty event log.
func (w *EventLogWriter) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM arena.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}
