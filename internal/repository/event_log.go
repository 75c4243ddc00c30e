package repository

import (
	"context"
	"time"

	"inputfeed/internal/input"
)

// EventLogCallback persists every delivered record under sessionID. Each
// insert is bounded by timeout.
func EventLogCallback(repo EventRepository, sessionID string, timeout time.Duration) input.Callback {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(rec input.Record) error {
		row, err := NewEventRow(sessionID, rec, time.Now())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return repo.Insert(ctx, row)
	}
}
