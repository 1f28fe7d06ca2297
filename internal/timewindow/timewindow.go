// Package timewindow evaluates the daily clock-time range within which an
// agent may mark attendance.
package timewindow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var (
	ErrInvalidFormat = errors.New("time must be in HH:MM 24-hour format")
	ErrInverted      = errors.New("start time must not be after end time")
)

// Window is a closed range of minutes since local midnight.
type Window struct {
	Start int
	End   int
}

// Default applies to managers that never configured a window.
func Default() Window {
	return Window{Start: 6 * 60, End: 9 * 60}
}

// Parse validates both bounds against the HH:MM format. Windows crossing
// midnight are rejected.
func Parse(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("startTime: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("endTime: %w", err)
	}
	if s > e {
		return Window{}, ErrInverted
	}
	return Window{Start: s, End: e}, nil
}

// ParseClock converts "H:MM" or "HH:MM" to minutes since midnight.
func ParseClock(value string) (int, error) {
	if !clockPattern.MatchString(value) {
		return 0, ErrInvalidFormat
	}
	hh, mm, _ := strings.Cut(value, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return h*60 + m, nil
}

// MinuteOfDay reads t's wall clock in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Contains reports whether t falls inside w, inclusive on both ends.
func (w Window) Contains(t time.Time) bool {
	m := MinuteOfDay(t)
	return w.Start <= m && m <= w.End
}

// Valid reports whether both bounds are on the clock and ordered. Windows
// built by Parse are always valid.
func (w Window) Valid() bool {
	return w.Start >= 0 && w.End < minutesPerDay && w.Start <= w.End
}

func (w Window) StartTime() string { return formatClock(w.Start) }

func (w Window) EndTime() string { return formatClock(w.End) }

func (w Window) String() string {
	return w.StartTime() + "-" + w.EndTime()
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

type wireWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireWindow{StartTime: w.StartTime(), EndTime: w.EndTime()})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var raw wireWindow
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw.StartTime, raw.EndTime)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
