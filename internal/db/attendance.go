package db

import (
	"context"
	"time"

	"teamdesk/internal/model"
)

const attendanceColumns = `id, user_id, "timestamp", sector, location`

func scanAttendance(row rowScanner) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Timestamp, &rec.Sector, &rec.Location)
	return rec, translate(err)
}

// CreateAttendance inserts rec for the calendar day given as YYYY-MM-DD. A
// second insert for the same user and day fails with ErrDuplicate.
func (s *Store) CreateAttendance(ctx context.Context, rec model.AttendanceRecord, day string) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attendance (user_id, "timestamp", attendance_day, sector, location)
		VALUES ($1, $2, $3::date, $4, $5)
		RETURNING `+attendanceColumns,
		rec.UserID, rec.Timestamp, day, rec.Sector, rec.Location)
	created, err := scanAttendance(row)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	created.Timestamp = created.Timestamp.In(rec.Timestamp.Location())
	return created, nil
}

// FindAttendance returns the earliest record of userID with a timestamp in
// [from, to].
func (s *Store) FindAttendance(ctx context.Context, userID int64, from, to time.Time) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE user_id = $1 AND "timestamp" BETWEEN $2 AND $3
		ORDER BY "timestamp"
		LIMIT 1
	`, userID, from, to)
	rec, err := scanAttendance(row)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.In(from.Location())
	return rec, nil
}

func (s *Store) ListAttendance(ctx context.Context, userID int64, from, to time.Time, limit int) ([]model.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE user_id = $1 AND "timestamp" BETWEEN $2 AND $3
		ORDER BY "timestamp" DESC
		LIMIT $4
	`, userID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.In(from.Location())
		records = append(records, rec)
	}
	return records, rows.Err()
}
