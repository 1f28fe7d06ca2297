// Package authz holds one authorization check per operation over the closed
// model.Role set.
package authz

import (
	"teamdesk/internal/apperr"
	"teamdesk/internal/model"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   model.Role
}

func (p Principal) IsAdmin() bool   { return p.Role == model.RoleAdmin }
func (p Principal) IsManager() bool { return p.Role == model.RoleManager }
func (p Principal) IsAgent() bool   { return p.Role == model.RoleAgent }

// MarkAttendance lets agents mark for themselves only. A zero target means
// the caller did not name one.
func MarkAttendance(p Principal, target int64) error {
	if !p.IsAgent() {
		return apperr.Forbidden("only agents can mark attendance")
	}
	if target != 0 && target != p.UserID {
		return apperr.Forbidden("cannot mark attendance for another user")
	}
	return nil
}

// ViewUserActivity covers attendance status, history and clients of subject.
func ViewUserActivity(p Principal, subject model.User) error {
	switch p.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleManager:
		if subject.ID == p.UserID || subject.Manager() == p.UserID {
			return nil
		}
	case model.RoleAgent:
		if subject.ID == p.UserID {
			return nil
		}
	}
	return apperr.Forbidden("not allowed to view this user")
}

func SetTimeWindow(p Principal) error {
	if !p.IsManager() {
		return apperr.Forbidden("only managers can set the attendance time frame")
	}
	return nil
}

// ViewTimeWindow allows managers their own window and admins any manager's.
func ViewTimeWindow(p Principal, managerID int64) error {
	switch {
	case p.IsAdmin():
		return nil
	case p.IsManager() && managerID == p.UserID:
		return nil
	}
	return apperr.Forbidden("not allowed to view this time frame")
}

func ViewAgentTimeWindow(p Principal) error {
	if !p.IsAgent() {
		return apperr.Forbidden("only agents have an agent time frame")
	}
	return nil
}

// CreateUser lets admins create any role and managers create agents.
func CreateUser(p Principal, role model.Role) error {
	switch {
	case p.IsAdmin():
		return nil
	case p.IsManager() && role == model.RoleAgent:
		return nil
	}
	return apperr.Forbidden("not allowed to create " + string(role) + " users")
}

func ViewTeam(p Principal, managerID int64) error {
	return ViewTimeWindow(p, managerID)
}

func CreateClient(p Principal) error {
	if !p.IsAgent() {
		return apperr.Forbidden("only agents can add clients")
	}
	return nil
}

func SubmitDailyReport(p Principal) error {
	if !p.IsAgent() {
		return apperr.Forbidden("only agents can submit daily reports")
	}
	return nil
}
