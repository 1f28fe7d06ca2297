// Package attendance enforces the once-per-day attendance mark and the
// per-manager time window it must fall in.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teamdesk/internal/apperr"
	"teamdesk/internal/authz"
	"teamdesk/internal/db"
	"teamdesk/internal/metrics"
	"teamdesk/internal/model"
	"teamdesk/internal/realtime"
	"teamdesk/internal/timewindow"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	clockLayout = "3:04 PM"
)

type Store interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateAttendance(ctx context.Context, rec model.AttendanceRecord, day string) (model.AttendanceRecord, error)
	FindAttendance(ctx context.Context, userID int64, from, to time.Time) (model.AttendanceRecord, error)
	ListAttendance(ctx context.Context, userID int64, from, to time.Time, limit int) ([]model.AttendanceRecord, error)
	GetTimeWindow(ctx context.Context, managerID int64) (timewindow.Window, error)
	UpsertTimeWindow(ctx context.Context, managerID int64, w timewindow.Window) (bool, error)
}

type WindowCache interface {
	Get(ctx context.Context, managerID int64) (timewindow.Window, bool, error)
	Set(ctx context.Context, managerID int64, w timewindow.Window) error
	Fill(ctx context.Context, managerID int64, w timewindow.Window) (bool, error)
	Invalidate(ctx context.Context, managerID int64) error
}

type Notifier interface {
	NotifyManagerTeam(managerID int64, ev realtime.Event) int
}

type Service struct {
	store  Store
	cache  WindowCache
	notify Notifier
	log    zerolog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now. Day boundaries follow the returned value's
// location.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCache(cache WindowCache) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(store Store, notifier Notifier, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		notify: notifier,
		log:    log.With().Str("component", "attendance").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type MarkInput struct {
	UserID   int64
	Sector   string
	Location string
}

func (s *Service) Mark(ctx context.Context, p authz.Principal, in MarkInput) (model.AttendanceRecord, error) {
	if err := authz.MarkAttendance(p, in.UserID); err != nil {
		metrics.TrackAttendanceMark("forbidden")
		return model.AttendanceRecord{}, err
	}
	sector := strings.TrimSpace(in.Sector)
	location := strings.TrimSpace(in.Location)
	if sector == "" {
		return model.AttendanceRecord{}, apperr.Validation("invalid_sector", "sector is required")
	}
	if location == "" {
		return model.AttendanceRecord{}, apperr.Validation("invalid_location", "location is required")
	}

	agent, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	managerID := agent.Manager()
	if managerID == 0 {
		return model.AttendanceRecord{}, apperr.InvalidState("no_manager", "no manager assigned")
	}

	window, err := s.effectiveWindow(ctx, managerID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	now := s.now()
	if !window.Contains(now) {
		metrics.TrackAttendanceMark("outside_window")
		return model.AttendanceRecord{}, apperr.PolicyViolation("outside_time_frame",
			fmt.Sprintf("attendance can only be marked between %s and %s", window.StartTime(), window.EndTime())).
			With("timeFrame", window)
	}

	from, to := model.DayBounds(now)
	existing, err := s.store.FindAttendance(ctx, agent.ID, from, to)
	switch {
	case err == nil:
		metrics.TrackAttendanceMark("already_marked")
		return model.AttendanceRecord{}, alreadyMarked(existing)
	case !errors.Is(err, db.ErrNotFound):
		return model.AttendanceRecord{}, apperr.Storage(err)
	}

	rec, err := s.store.CreateAttendance(ctx, model.AttendanceRecord{
		UserID:    agent.ID,
		Timestamp: now,
		Sector:    sector,
		Location:  location,
	}, model.DayKey(now))
	if errors.Is(err, db.ErrDuplicate) {
		// Lost the race against a concurrent mark for the same day.
		metrics.TrackAttendanceMark("already_marked")
		winner, findErr := s.store.FindAttendance(ctx, agent.ID, from, to)
		if findErr != nil {
			return model.AttendanceRecord{}, apperr.AlreadyMarked("attendance already marked for today")
		}
		return model.AttendanceRecord{}, alreadyMarked(winner)
	}
	if err != nil {
		metrics.TrackAttendanceMark("error")
		return model.AttendanceRecord{}, apperr.Storage(err)
	}
	metrics.TrackAttendanceMark("created")

	s.log.Info().Int64("user_id", agent.ID).Int64("manager_id", managerID).Int64("attendance_id", rec.ID).Msg("attendance marked")
	s.notify.NotifyManagerTeam(managerID, realtime.Event{
		Type: realtime.EventAttendanceMarked,
		Data: realtime.AttendanceMarked{
			Attendance:    rec,
			AgentName:     agent.Name,
			FormattedTime: rec.Timestamp.Format(clockLayout),
			Sector:        rec.Sector,
			Location:      rec.Location,
		},
	})
	return rec, nil
}

func alreadyMarked(rec model.AttendanceRecord) error {
	return apperr.AlreadyMarked("attendance already marked for today").With("attendance", rec)
}

type Status struct {
	Marked     bool                    `json:"marked"`
	Time       string                  `json:"time,omitempty"`
	Attendance *model.AttendanceRecord `json:"attendance,omitempty"`
}

// Status reports whether userID marked today. A zero userID means the caller.
func (s *Service) Status(ctx context.Context, p authz.Principal, userID int64) (Status, error) {
	subject, err := s.subject(ctx, p, userID)
	if err != nil {
		return Status{}, err
	}
	from, to := model.DayBounds(s.now())
	rec, err := s.store.FindAttendance(ctx, subject.ID, from, to)
	if errors.Is(err, db.ErrNotFound) {
		return Status{Marked: false}, nil
	}
	if err != nil {
		return Status{}, apperr.Storage(err)
	}
	return Status{Marked: true, Time: rec.Timestamp.Format(clockLayout), Attendance: &rec}, nil
}

// MarkedToday backs preconditions of other operations and skips authorization.
func (s *Service) MarkedToday(ctx context.Context, userID int64) (bool, error) {
	from, to := model.DayBounds(s.now())
	_, err := s.store.FindAttendance(ctx, userID, from, to)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage(err)
	}
	return true, nil
}

type HistoryQuery struct {
	UserID int64
	From   time.Time
	To     time.Time
	Limit  int
}

// History lists records newest first. A zero To means the end of today.
func (s *Service) History(ctx context.Context, p authz.Principal, q HistoryQuery) ([]model.AttendanceRecord, error) {
	subject, err := s.subject(ctx, p, q.UserID)
	if err != nil {
		return nil, err
	}
	to := q.To
	if to.IsZero() {
		_, to = model.DayBounds(s.now())
	}
	if !q.From.IsZero() && q.From.After(to) {
		return nil, apperr.Validation("invalid_range", "from must not be after to")
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	records, err := s.store.ListAttendance(ctx, subject.ID, q.From, to, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return records, nil
}

// SetWindow creates or replaces the caller's window and reports whether it
// was created.
func (s *Service) SetWindow(ctx context.Context, p authz.Principal, start, end string) (timewindow.Window, bool, error) {
	if err := authz.SetTimeWindow(p); err != nil {
		return timewindow.Window{}, false, err
	}
	w, err := timewindow.Parse(start, end)
	if err != nil {
		return timewindow.Window{}, false, apperr.Validation("invalid_time_frame", err.Error())
	}
	created, err := s.store.UpsertTimeWindow(ctx, p.UserID, w)
	if errors.Is(err, db.ErrNotFound) {
		return timewindow.Window{}, false, apperr.NotFound("manager_not_found", "manager not found")
	}
	if err != nil {
		return timewindow.Window{}, false, apperr.Storage(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, p.UserID, w); err != nil {
			s.log.Warn().Err(err).Int64("manager_id", p.UserID).Msg("window cache set failed")
			if err := s.cache.Invalidate(ctx, p.UserID); err != nil {
				s.log.Warn().Err(err).Int64("manager_id", p.UserID).Msg("window cache invalidate failed")
			}
		}
	}

	s.log.Info().Int64("manager_id", p.UserID).Str("window", w.String()).Bool("created", created).Msg("attendance time frame set")
	s.notify.NotifyManagerTeam(p.UserID, realtime.Event{
		Type: realtime.EventAttendanceTimeframeUpdated,
		Data: realtime.NewTimeframeUpdated(p.UserID, w),
	})
	return w, created, nil
}

// Window returns a manager's effective window. Managers read their own;
// admins must name the manager.
func (s *Service) Window(ctx context.Context, p authz.Principal, managerID int64) (timewindow.Window, error) {
	if p.IsManager() && managerID == 0 {
		managerID = p.UserID
	}
	if p.IsAdmin() && managerID == 0 {
		return timewindow.Window{}, apperr.Validation("invalid_manager_id", "managerId is required")
	}
	if err := authz.ViewTimeWindow(p, managerID); err != nil {
		return timewindow.Window{}, err
	}
	manager, err := s.loadUser(ctx, managerID)
	if err != nil {
		return timewindow.Window{}, err
	}
	if manager.Role != model.RoleManager {
		return timewindow.Window{}, apperr.NotFound("manager_not_found", "manager not found")
	}
	return s.effectiveWindow(ctx, managerID)
}

// AgentWindow resolves the caller's manager's window, or the default when
// the agent has no manager.
func (s *Service) AgentWindow(ctx context.Context, p authz.Principal) (timewindow.Window, error) {
	if err := authz.ViewAgentTimeWindow(p); err != nil {
		return timewindow.Window{}, err
	}
	agent, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return timewindow.Window{}, err
	}
	if agent.Manager() == 0 {
		return timewindow.Default(), nil
	}
	return s.effectiveWindow(ctx, agent.Manager())
}

func (s *Service) effectiveWindow(ctx context.Context, managerID int64) (timewindow.Window, error) {
	if s.cache != nil {
		w, ok, err := s.cache.Get(ctx, managerID)
		if err != nil {
			s.log.Warn().Err(err).Int64("manager_id", managerID).Msg("window cache get failed")
		}
		if ok {
			return w, nil
		}
	}

	w, err := s.store.GetTimeWindow(ctx, managerID)
	if errors.Is(err, db.ErrNotFound) {
		w = timewindow.Default()
	} else if err != nil {
		return timewindow.Window{}, apperr.Storage(err)
	}
	if s.cache != nil {
		// A SetWindow racing this read has already written the newer window.
		if _, err := s.cache.Fill(ctx, managerID, w); err != nil {
			s.log.Warn().Err(err).Int64("manager_id", managerID).Msg("window cache fill failed")
		}
	}
	return w, nil
}

func (s *Service) subject(ctx context.Context, p authz.Principal, userID int64) (model.User, error) {
	if userID == 0 {
		userID = p.UserID
	}
	subject, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := authz.ViewUserActivity(p, subject); err != nil {
		return model.User{}, err
	}
	return subject, nil
}

func (s *Service) loadUser(ctx context.Context, id int64) (model.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return model.User{}, apperr.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return model.User{}, apperr.Storage(err)
	}
	return user, nil
}
