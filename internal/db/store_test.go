package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"teamdesk/internal/model"
	"teamdesk/internal/timewindow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEAMDESK_TEST_DB")
	if url == "" {
		t.Skip("TEAMDESK_TEST_DB not set")
	}
	pool, err := NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	store := NewStore(pool)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestPostgresAttendanceLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")

	manager, err := store.CreateUser(ctx, model.User{Name: "Manager", Email: fmt.Sprintf("m.%s@example.local", suffix), PasswordHash: "x", Role: model.RoleManager})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	agent, err := store.CreateUser(ctx, model.User{Name: "Agent", Email: fmt.Sprintf("a.%s@example.local", suffix), PasswordHash: "x", Role: model.RoleAgent, ManagerID: &manager.ID})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if _, err := store.CreateUser(ctx, model.User{Name: "Dup", Email: agent.Email, PasswordHash: "x", Role: model.RoleAgent}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	now := time.Now()
	rec, err := store.CreateAttendance(ctx, model.AttendanceRecord{UserID: agent.ID, Timestamp: now, Sector: "Health Insurance", Location: "Main Office"}, model.DayKey(now))
	if err != nil {
		t.Fatalf("create attendance: %v", err)
	}
	if _, err := store.CreateAttendance(ctx, model.AttendanceRecord{UserID: agent.ID, Timestamp: now, Sector: "x", Location: "y"}, model.DayKey(now)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	from, to := model.DayBounds(now)
	found, err := store.FindAttendance(ctx, agent.ID, from, to)
	if err != nil {
		t.Fatalf("find attendance: %v", err)
	}
	if found.ID != rec.ID {
		t.Fatalf("expected record %d, got %d", rec.ID, found.ID)
	}

	created, err := store.UpsertTimeWindow(ctx, manager.ID, timewindow.Default())
	if err != nil || !created {
		t.Fatalf("expected insert, got %v %v", created, err)
	}
	created, err = store.UpsertTimeWindow(ctx, manager.ID, timewindow.Window{Start: 420, End: 600})
	if err != nil || created {
		t.Fatalf("expected update, got %v %v", created, err)
	}
	w, err := store.GetTimeWindow(ctx, manager.ID)
	if err != nil || w.StartTime() != "07:00" || w.EndTime() != "10:00" {
		t.Fatalf("unexpected window %s (%v)", w, err)
	}

	team, err := store.ListTeam(ctx, manager.ID)
	if err != nil || len(team) != 1 || team[0].ID != agent.ID {
		t.Fatalf("unexpected team %+v (%v)", team, err)
	}
}
