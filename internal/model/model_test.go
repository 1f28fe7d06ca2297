package model

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":     RoleAdmin,
		" Manager ": RoleManager,
		"AGENT":     RoleAgent,
	}
	for input, expected := range cases {
		role, err := ParseRole(input)
		if err != nil {
			t.Fatalf("expected %q to parse", input)
		}
		if role != expected {
			t.Fatalf("expected %s got %s", expected, role)
		}
	}
	for _, input := range []string{"", "end_user", "supervisor"} {
		if _, err := ParseRole(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
	if Role("owner").Valid() {
		t.Fatalf("expected unknown role to be invalid")
	}
}

func TestDayBoundsInclusive(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 59, 12, 0, time.Local)
	start, end := DayBounds(now)
	if !start.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)) {
		t.Fatalf("unexpected start %s", start)
	}
	if end.Day() != 10 || end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Fatalf("unexpected end %s", end)
	}
	if DayKey(now) != "2026-03-10" {
		t.Fatalf("unexpected day key %s", DayKey(now))
	}
}
