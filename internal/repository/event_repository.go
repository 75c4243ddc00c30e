package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"inputfeed/internal/input"

	"github.com/google/uuid"
)

// EventRow is one persisted record. Payload holds the consumer-shaped JSON.
type EventRow struct {
	ID         string
	SessionID  string
	Tag        string
	Name       *string
	Secs       int64
	Nanos      int64
	Payload    json.RawMessage
	ReceivedAt time.Time
}

type EventRepository interface {
	Insert(ctx context.Context, rows ...EventRow) error
	// Recent returns up to limit rows, newest first. An empty tag matches all.
	Recent(ctx context.Context, tag string, limit int) ([]EventRow, error)
	Count(ctx context.Context) (int, error)
}

const (
	eventColumns = 8
	maxRecent    = 500
)

type eventRepository struct {
	db      DBTX
	dialect Dialect
}

func NewEventRepository(db DBTX, dialect Dialect) EventRepository {
	return &eventRepository{db: db, dialect: dialect}
}

// NewEventRow builds a row for rec received at the given time.
func NewEventRow(sessionID string, rec input.Record, receivedAt time.Time) (EventRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return EventRow{}, err
	}
	return EventRow{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Tag:        string(rec.Tag()),
		Name:       rec.Name,
		Secs:       rec.Time.Secs,
		Nanos:      rec.Time.Nanos,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

// Insert writes rows in one statement. Rows whose ID already exists make
// the whole insert a no-op, so retrying a batch is safe.
func (r *eventRepository) Insert(ctx context.Context, rows ...EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(rows)*eventColumns)
	for _, row := range rows {
		var name sql.NullString
		if row.Name != nil {
			name = sql.NullString{String: *row.Name, Valid: true}
		}
		args = append(args,
			row.ID,
			row.SessionID,
			row.Tag,
			name,
			row.Secs,
			row.Nanos,
			string(row.Payload),
			row.ReceivedAt.UnixNano(),
		)
	}
	query := `INSERT INTO input_events (id, session_id, tag, name, secs, nanos, payload, received_at) VALUES ` +
		buildValues(len(rows), eventColumns)
	if _, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert input events: %w", err)
	}
	return nil
}

func (r *eventRepository) Recent(ctx context.Context, tag string, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	var (
		rows *sql.Rows
		err  error
	)
	if tag == "" {
		rows, err = r.db.QueryContext(ctx, r.dialect.rebind(`
			SELECT id, session_id, tag, name, secs, nanos, payload, received_at
			FROM input_events
			ORDER BY received_at DESC
			LIMIT ?
		`), limit)
	} else {
		rows, err = r.db.QueryContext(ctx, r.dialect.rebind(`
			SELECT id, session_id, tag, name, secs, nanos, payload, received_at
			FROM input_events
			WHERE tag = ?
			ORDER BY received_at DESC
			LIMIT ?
		`), tag, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			row      EventRow
			name     sql.NullString
			payload  string
			received int64
		)
		if err := rows.Scan(&row.ID, &row.SessionID, &row.Tag, &name, &row.Secs, &row.Nanos, &payload, &received); err != nil {
			return nil, err
		}
		if name.Valid {
			n := name.String
			row.Name = &n
		}
		row.Payload = json.RawMessage(payload)
		row.ReceivedAt = time.Unix(0, received).UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *eventRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM input_events`).Scan(&n)
	return n, err
}
