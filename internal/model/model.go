package model

import (
	"errors"
	"strings"
	"time"
)

// Role is the closed set of user kinds. The zero value is not a valid role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

var ErrInvalidRole = errors.New("invalid role")

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleAgent:
		return RoleAgent, nil
	}
	return "", ErrInvalidRole
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	ManagerID    *int64    `json:"managerId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Manager returns the assigned manager id, or 0 when none is set.
func (u User) Manager() int64 {
	if u.ManagerID == nil {
		return 0
	}
	return *u.ManagerID
}

type AttendanceRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Sector    string    `json:"sector"`
	Location  string    `json:"location"`
}

type Client struct {
	ID            int64     `json:"id"`
	AgentID       int64     `json:"agentId"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	InsuranceType string    `json:"insuranceType,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DailyReport struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	ManagerID       int64     `json:"managerId"`
	ReportDate      string    `json:"reportDate"`
	CallsMade       int       `json:"callsMade"`
	MeetingsHeld    int       `json:"meetingsHeld"`
	ClientsAcquired int       `json:"clientsAcquired"`
	Summary         string    `json:"summary"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Day bounds are taken in t's location, inclusive on both ends.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// DayKey is the calendar day of t in its location, as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
