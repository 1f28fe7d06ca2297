package db

import (
	"context"

	"teamdesk/internal/model"
)

func (s *Store) CreateDailyReport(ctx context.Context, report model.DailyReport) (model.DailyReport, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO daily_reports (user_id, manager_id, report_date, calls_made, meetings_held, clients_acquired, summary)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		RETURNING id, user_id, manager_id, to_char(report_date, 'YYYY-MM-DD'), calls_made, meetings_held, clients_acquired, summary, created_at
	`, report.UserID, report.ManagerID, report.ReportDate, report.CallsMade, report.MeetingsHeld, report.ClientsAcquired, report.Summary)

	var created model.DailyReport
	err := row.Scan(&created.ID, &created.UserID, &created.ManagerID, &created.ReportDate, &created.CallsMade,
		&created.MeetingsHeld, &created.ClientsAcquired, &created.Summary, &created.CreatedAt)
	return created, translate(err)
}
