// Package memdb is an in-process store with the same method set and
// uniqueness guarantees as the Postgres store.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"teamdesk/internal/db"
	"teamdesk/internal/model"
	"teamdesk/internal/timewindow"
)

type dayKey struct {
	userID int64
	day    string
}

type Store struct {
	mu sync.RWMutex

	now func() time.Time

	nextUserID       int64
	nextAttendanceID int64
	nextClientID     int64
	nextReportID     int64

	users      map[int64]model.User
	attendance []model.AttendanceRecord
	days       map[dayKey]int
	windows    map[int64]timewindow.Window
	clients    []model.Client
	reports    []model.DailyReport
}

func New() *Store {
	return &Store{
		now:     time.Now,
		users:   make(map[int64]model.User),
		days:    make(map[dayKey]int),
		windows: make(map[int64]timewindow.Window),
	}
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, user model.User) (model.User, error) {
	if !user.Role.Valid() {
		return model.User{}, db.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return model.User{}, db.ErrDuplicate
		}
	}
	if user.ManagerID != nil {
		if _, ok := s.users[*user.ManagerID]; !ok {
			return model.User{}, db.ErrNotFound
		}
		managerID := *user.ManagerID
		user.ManagerID = &managerID
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, db.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return model.User{}, db.ErrNotFound
}

func (s *Store) ListTeam(_ context.Context, managerID int64) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team := []model.User{}
	for _, user := range s.users {
		if user.Manager() == managerID {
			team = append(team, user)
		}
	}
	sort.Slice(team, func(i, j int) bool {
		if team[i].Name != team[j].Name {
			return team[i].Name < team[j].Name
		}
		return team[i].ID < team[j].ID
	})
	return team, nil
}

func (s *Store) CreateAttendance(_ context.Context, rec model.AttendanceRecord, day string) (model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey{userID: rec.UserID, day: day}
	if _, taken := s.days[key]; taken {
		return model.AttendanceRecord{}, db.ErrDuplicate
	}
	s.nextAttendanceID++
	rec.ID = s.nextAttendanceID
	s.days[key] = len(s.attendance)
	s.attendance = append(s.attendance, rec)
	return rec, nil
}

func (s *Store) FindAttendance(_ context.Context, userID int64, from, to time.Time) (model.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.AttendanceRecord
	for i := range s.attendance {
		rec := &s.attendance[i]
		if rec.UserID != userID || rec.Timestamp.Before(from) || rec.Timestamp.After(to) {
			continue
		}
		if found == nil || rec.Timestamp.Before(found.Timestamp) {
			found = rec
		}
	}
	if found == nil {
		return model.AttendanceRecord{}, db.ErrNotFound
	}
	return *found, nil
}

func (s *Store) ListAttendance(_ context.Context, userID int64, from, to time.Time, limit int) ([]model.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []model.AttendanceRecord{}
	for _, rec := range s.attendance {
		if rec.UserID == userID && !rec.Timestamp.Before(from) && !rec.Timestamp.After(to) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) GetTimeWindow(_ context.Context, managerID int64) (timewindow.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[managerID]
	if !ok {
		return timewindow.Window{}, db.ErrNotFound
	}
	return w, nil
}

func (s *Store) UpsertTimeWindow(_ context.Context, managerID int64, w timewindow.Window) (bool, error) {
	if !w.Valid() {
		return false, db.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[managerID]; !ok {
		return false, db.ErrNotFound
	}
	_, existed := s.windows[managerID]
	s.windows[managerID] = w
	return !existed, nil
}

func (s *Store) CreateClient(_ context.Context, client model.Client) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextClientID++
	client.ID = s.nextClientID
	client.CreatedAt = s.now()
	s.clients = append(s.clients, client)
	return client, nil
}

func (s *Store) ListClients(_ context.Context, filter db.ClientFilter) ([]model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := []model.Client{}
	for i := len(s.clients) - 1; i >= 0; i-- {
		c := s.clients[i]
		if filter.AgentID != 0 && c.AgentID != filter.AgentID {
			continue
		}
		if filter.ManagerID != 0 && s.users[c.AgentID].Manager() != filter.ManagerID {
			continue
		}
		clients = append(clients, c)
		if filter.Limit > 0 && len(clients) == filter.Limit {
			break
		}
	}
	return clients, nil
}

func (s *Store) CreateDailyReport(_ context.Context, report model.DailyReport) (model.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReportID++
	report.ID = s.nextReportID
	report.CreatedAt = s.now()
	s.reports = append(s.reports, report)
	return report, nil
}
