package memdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"teamdesk/internal/db"
	"teamdesk/internal/model"
	"teamdesk/internal/timewindow"
)

func mustUser(t *testing.T, s *Store, user model.User) model.User {
	t.Helper()
	created, err := s.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return created
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()
	mustUser(t, s, model.User{Name: "M", Email: "m@example.com", Role: model.RoleManager})
	_, err := s.CreateUser(context.Background(), model.User{Name: "M2", Email: "M@example.com", Role: model.RoleManager})
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	missing := int64(99)
	_, err = s.CreateUser(context.Background(), model.User{Name: "A", Email: "a@example.com", Role: model.RoleAgent, ManagerID: &missing})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected unknown manager to fail, got %v", err)
	}
}

func TestAttendanceUniquePerDayUnderConcurrency(t *testing.T) {
	s := New()
	agent := mustUser(t, s, model.User{Name: "A", Email: "a@example.com", Role: model.RoleAgent})
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateAttendance(context.Background(), model.AttendanceRecord{UserID: agent.ID, Timestamp: now, Sector: "s", Location: "l"}, model.DayKey(now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, db.ErrDuplicate):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || duplicates != 19 {
		t.Fatalf("expected 1 success and 19 duplicates, got %d/%d", successes, duplicates)
	}

	from, to := model.DayBounds(now)
	rec, err := s.FindAttendance(context.Background(), agent.ID, from, to)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("expected first record, got %d", rec.ID)
	}

	tomorrow := now.AddDate(0, 0, 1)
	if _, err := s.CreateAttendance(context.Background(), model.AttendanceRecord{UserID: agent.ID, Timestamp: tomorrow, Sector: "s", Location: "l"}, model.DayKey(tomorrow)); err != nil {
		t.Fatalf("expected next day to be allowed: %v", err)
	}
	history, err := s.ListAttendance(context.Background(), agent.ID, from, tomorrow, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 || !history[0].Timestamp.Equal(tomorrow) {
		t.Fatalf("expected newest first, got %+v", history)
	}
}

func TestUpsertTimeWindow(t *testing.T) {
	s := New()
	manager := mustUser(t, s, model.User{Name: "M", Email: "m@example.com", Role: model.RoleManager})

	if _, err := s.GetTimeWindow(context.Background(), manager.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected no window, got %v", err)
	}
	created, err := s.UpsertTimeWindow(context.Background(), manager.ID, timewindow.Default())
	if err != nil || !created {
		t.Fatalf("expected insert, got created=%v err=%v", created, err)
	}
	updated := timewindow.Window{Start: 420, End: 600}
	created, err = s.UpsertTimeWindow(context.Background(), manager.ID, updated)
	if err != nil || created {
		t.Fatalf("expected update, got created=%v err=%v", created, err)
	}
	got, err := s.GetTimeWindow(context.Background(), manager.ID)
	if err != nil || got != updated {
		t.Fatalf("expected %s, got %s (%v)", updated, got, err)
	}
}

func TestRejectsInvalidValues(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, model.User{Name: "X", Email: "x@example.com", Role: "owner"}); !errors.Is(err, db.ErrInvalid) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
	manager := mustUser(t, s, model.User{Name: "M", Email: "m@example.com", Role: model.RoleManager})
	if _, err := s.UpsertTimeWindow(ctx, manager.ID, timewindow.Window{Start: 600, End: 540}); !errors.Is(err, db.ErrInvalid) {
		t.Fatalf("expected inverted window to be rejected, got %v", err)
	}
	if _, err := s.GetTimeWindow(ctx, manager.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestListClientsByTeam(t *testing.T) {
	s := New()
	m1 := mustUser(t, s, model.User{Name: "M1", Email: "m1@example.com", Role: model.RoleManager})
	m2 := mustUser(t, s, model.User{Name: "M2", Email: "m2@example.com", Role: model.RoleManager})
	a1 := mustUser(t, s, model.User{Name: "A1", Email: "a1@example.com", Role: model.RoleAgent, ManagerID: &m1.ID})
	a2 := mustUser(t, s, model.User{Name: "A2", Email: "a2@example.com", Role: model.RoleAgent, ManagerID: &m2.ID})

	for _, agentID := range []int64{a1.ID, a2.ID, a1.ID} {
		if _, err := s.CreateClient(context.Background(), model.Client{AgentID: agentID, Name: "c"}); err != nil {
			t.Fatalf("create client: %v", err)
		}
	}
	team, _ := s.ListClients(context.Background(), db.ClientFilter{ManagerID: m1.ID})
	if len(team) != 2 {
		t.Fatalf("expected 2 clients on team 1, got %d", len(team))
	}
	own, _ := s.ListClients(context.Background(), db.ClientFilter{AgentID: a2.ID})
	if len(own) != 1 || own[0].AgentID != a2.ID {
		t.Fatalf("unexpected agent clients %+v", own)
	}
	limited, _ := s.ListClients(context.Background(), db.ClientFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != 3 {
		t.Fatalf("expected newest client only, got %+v", limited)
	}
}
