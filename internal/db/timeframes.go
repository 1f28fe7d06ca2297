package db

import (
	"context"

	"teamdesk/internal/timewindow"
)

func (s *Store) GetTimeWindow(ctx context.Context, managerID int64) (timewindow.Window, error) {
	var start, end string
	err := s.pool.QueryRow(ctx, `
		SELECT start_time, end_time FROM attendance_timeframes WHERE manager_id = $1
	`, managerID).Scan(&start, &end)
	if err != nil {
		return timewindow.Window{}, translate(err)
	}
	return timewindow.Parse(start, end)
}

// UpsertTimeWindow stores the manager's single window and reports whether a
// new row was inserted.
func (s *Store) UpsertTimeWindow(ctx context.Context, managerID int64, w timewindow.Window) (bool, error) {
	if !w.Valid() {
		return false, ErrInvalid
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO attendance_timeframes (manager_id, start_time, end_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (manager_id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    updated_at = now()
		RETURNING (xmax = 0)
	`, managerID, w.StartTime(), w.EndTime()).Scan(&inserted)
	return inserted, translate(err)
}
