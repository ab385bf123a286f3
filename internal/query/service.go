package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Service provides read-only access to the persisted event log and the
// transfer audit trail. Live ledger state is served straight from the
// core; this covers history.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// EventRecord is one event-log row as served to clients.
type EventRecord struct {
	Sequence      int64           `json:"sequence"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	CompetitionID int64           `json:"competition_id"`
	Caller        string          `json:"caller"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TransferRecord is one transfer audit row as served to clients.
type TransferRecord struct {
	TransferID    string `json:"transfer_id"`
	Sequence      int64  `json:"sequence"`
	CompetitionID int64  `json:"competition_id"`
	Asset         string `json:"asset"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	Kind          string `json:"kind"`
	Timestamp     int64  `json:"timestamp"`
}

// CompetitionEvents returns a competition's event history after the given
// sequence, oldest first.
func (s *Service) CompetitionEvents(ctx context.Context, competitionID int64, afterSequence int64, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_id, event_type, competition_id, caller, payload, timestamp
		FROM arena.events
		WHERE competition_id = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3
	`, competitionID, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(
			&e.Sequence, &e.EventID, &e.EventType, &e.CompetitionID,
			&e.Caller, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ParticipantTransfers returns the asset movements involving one address
// within a competition, oldest first.
func (s *Service) ParticipantTransfers(ctx context.Context, competitionID int64, address string, limit int) ([]TransferRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transfer_id, sequence, competition_id, asset, from_addr, to_addr, amount, kind, timestamp
		FROM arena.transfers
		WHERE competition_id = $1 AND (from_addr = $2 OR to_addr = $2)
		ORDER BY sequence ASC
		LIMIT $3
	`, competitionID, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []TransferRecord
	for rows.Next() {
		var t TransferRecord
		if err := rows.Scan(
			&t.TransferID, &t.Sequence, &t.CompetitionID, &t.Asset,
			&t.From, &t.To, &t.Amount, &t.Kind, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
