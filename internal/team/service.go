// Package team covers user, client and daily report operations and the
// notifications they emit.
package team

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teamdesk/internal/apperr"
	"teamdesk/internal/auth"
	"teamdesk/internal/authz"
	"teamdesk/internal/db"
	"teamdesk/internal/model"
	"teamdesk/internal/realtime"
)

const minPasswordLength = 8

type Store interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListTeam(ctx context.Context, managerID int64) ([]model.User, error)
	CreateClient(ctx context.Context, client model.Client) (model.Client, error)
	ListClients(ctx context.Context, filter db.ClientFilter) ([]model.Client, error)
	CreateDailyReport(ctx context.Context, report model.DailyReport) (model.DailyReport, error)
}

// Attendance answers whether an agent already marked today.
type Attendance interface {
	MarkedToday(ctx context.Context, userID int64) (bool, error)
}

type Notifier interface {
	NotifyUser(userID int64, ev realtime.Event) int
	NotifyByRole(role model.Role, ev realtime.Event) int
	NotifyManagerTeam(managerID int64, ev realtime.Event) int
}

type Service struct {
	store      Store
	attendance Attendance
	notify     Notifier
	log        zerolog.Logger
	now        func() time.Time
	hash       func(string) (string, error)
}

func NewService(store Store, attendance Attendance, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		attendance: attendance,
		notify:     notifier,
		log:        log.With().Str("component", "team").Logger(),
		now:        time.Now,
		hash:       auth.HashPassword,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateUserInput struct {
	Name      string
	Email     string
	Password  string
	Role      string
	ManagerID *int64
}

// CreateUser registers a user. Managers may only add agents, which always
// join the caller's own team.
func (s *Service) CreateUser(ctx context.Context, p authz.Principal, in CreateUserInput) (model.User, error) {
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return model.User{}, apperr.Validation("invalid_role", "role must be admin, manager or agent")
	}
	if err := authz.CreateUser(p, role); err != nil {
		return model.User{}, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return model.User{}, apperr.Validation("invalid_name", "name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.User{}, apperr.Validation("invalid_email", "email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return model.User{}, apperr.Validation("invalid_password", "password must be at least 8 characters")
	}

	managerID, err := s.resolveManager(ctx, p, role, in.ManagerID)
	if err != nil {
		return model.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return model.User{}, apperr.New(apperr.KindUnknown, "internal_error", "could not hash password")
	}
	user := model.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if managerID != 0 {
		user.ManagerID = &managerID
	}
	created, err := s.store.CreateUser(ctx, user)
	if errors.Is(err, db.ErrDuplicate) {
		return model.User{}, apperr.Validation("email_taken", "a user with this email already exists")
	}
	if err != nil {
		return model.User{}, apperr.Storage(err)
	}

	s.log.Info().Int64("user_id", created.ID).Str("role", string(role)).Int64("created_by", p.UserID).Msg("user created")
	if role == model.RoleAgent && managerID != 0 {
		s.notify.NotifyManagerTeam(managerID, realtime.Event{
			Type: realtime.EventAgentAdded,
			Data: realtime.AgentAdded{Agent: created, ManagerID: managerID},
		})
	}
	if p.IsAdmin() {
		s.notify.NotifyByRole(model.RoleAdmin, realtime.Event{
			Type: realtime.EventUserCreated,
			Data: realtime.UserCreated{User: created, CreatedBy: p.UserID},
		})
	}
	return created, nil
}

func (s *Service) CreateAgent(ctx context.Context, p authz.Principal, in CreateUserInput) (model.User, error) {
	in.Role = string(model.RoleAgent)
	return s.CreateUser(ctx, p, in)
}

func (s *Service) resolveManager(ctx context.Context, p authz.Principal, role model.Role, requested *int64) (int64, error) {
	if role != model.RoleAgent {
		if requested != nil && *requested != 0 {
			return 0, apperr.Validation("invalid_manager_id", "only agents can be assigned a manager")
		}
		return 0, nil
	}
	if p.IsManager() {
		if requested != nil && *requested != 0 && *requested != p.UserID {
			return 0, apperr.Forbidden("managers can only add agents to their own team")
		}
		return p.UserID, nil
	}
	if requested == nil || *requested == 0 {
		return 0, nil
	}
	manager, err := s.store.GetUser(ctx, *requested)
	if errors.Is(err, db.ErrNotFound) || (err == nil && manager.Role != model.RoleManager) {
		return 0, apperr.NotFound("manager_not_found", "manager not found")
	}
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return manager.ID, nil
}

// ListTeam lists a manager's agents. Managers read their own; admins must
// name the manager.
func (s *Service) ListTeam(ctx context.Context, p authz.Principal, managerID int64) ([]model.User, error) {
	if p.IsManager() && managerID == 0 {
		managerID = p.UserID
	}
	if p.IsAdmin() && managerID == 0 {
		return nil, apperr.Validation("invalid_manager_id", "managerId is required")
	}
	if err := authz.ViewTeam(p, managerID); err != nil {
		return nil, err
	}
	members, err := s.store.ListTeam(ctx, managerID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return members, nil
}

type ClientInput struct {
	Name          string
	Phone         string
	Email         string
	InsuranceType string
	Notes         string
}

// CreateClient requires the agent to have marked attendance today.
func (s *Service) CreateClient(ctx context.Context, p authz.Principal, in ClientInput) (model.Client, error) {
	if err := authz.CreateClient(p); err != nil {
		return model.Client{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Client{}, apperr.Validation("invalid_name", "client name is required")
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return model.Client{}, apperr.Validation("invalid_email", "client email is invalid")
		}
	}

	agent, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return model.Client{}, err
	}
	marked, err := s.attendance.MarkedToday(ctx, agent.ID)
	if err != nil {
		return model.Client{}, err
	}
	if !marked {
		return model.Client{}, apperr.InvalidState("attendance_required", "mark attendance before adding clients")
	}

	client, err := s.store.CreateClient(ctx, model.Client{
		AgentID:       agent.ID,
		Name:          name,
		Phone:         strings.TrimSpace(in.Phone),
		Email:         email,
		InsuranceType: strings.TrimSpace(in.InsuranceType),
		Notes:         strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return model.Client{}, apperr.Storage(err)
	}

	s.log.Info().Int64("client_id", client.ID).Int64("agent_id", agent.ID).Msg("client added")
	s.notify.NotifyManagerTeam(agent.Manager(), realtime.Event{
		Type: realtime.EventClientAdded,
		Data: realtime.ClientAdded{Client: client, AgentName: agent.Name},
	})
	return client, nil
}

// ListClients scopes by role: agents see their own, managers their team,
// admins everything. agentID narrows the result when allowed.
func (s *Service) ListClients(ctx context.Context, p authz.Principal, agentID int64, limit int) ([]model.Client, error) {
	filter := db.ClientFilter{AgentID: agentID, Limit: limit}
	switch {
	case p.IsAgent():
		if agentID != 0 && agentID != p.UserID {
			return nil, apperr.Forbidden("not allowed to view this user")
		}
		filter.AgentID = p.UserID
	case p.IsManager():
		if agentID != 0 {
			subject, err := s.loadUser(ctx, agentID)
			if err != nil {
				return nil, err
			}
			if err := authz.ViewUserActivity(p, subject); err != nil {
				return nil, err
			}
		} else {
			filter.ManagerID = p.UserID
		}
	case p.IsAdmin():
	default:
		return nil, apperr.Forbidden("not allowed to view clients")
	}

	clients, err := s.store.ListClients(ctx, filter)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return clients, nil
}

type ReportInput struct {
	CallsMade       int
	MeetingsHeld    int
	ClientsAcquired int
	Summary         string
}

func (s *Service) SubmitReport(ctx context.Context, p authz.Principal, in ReportInput) (model.DailyReport, error) {
	if err := authz.SubmitDailyReport(p); err != nil {
		return model.DailyReport{}, err
	}
	if in.CallsMade < 0 || in.MeetingsHeld < 0 || in.ClientsAcquired < 0 {
		return model.DailyReport{}, apperr.Validation("invalid_report", "counts must not be negative")
	}
	agent, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return model.DailyReport{}, err
	}
	managerID := agent.Manager()
	if managerID == 0 {
		return model.DailyReport{}, apperr.InvalidState("no_manager", "no manager assigned")
	}

	report, err := s.store.CreateDailyReport(ctx, model.DailyReport{
		UserID:          agent.ID,
		ManagerID:       managerID,
		ReportDate:      model.DayKey(s.now()),
		CallsMade:       in.CallsMade,
		MeetingsHeld:    in.MeetingsHeld,
		ClientsAcquired: in.ClientsAcquired,
		Summary:         strings.TrimSpace(in.Summary),
	})
	if err != nil {
		return model.DailyReport{}, apperr.Storage(err)
	}

	s.log.Info().Int64("report_id", report.ID).Int64("agent_id", agent.ID).Msg("daily report submitted")
	s.notify.NotifyUser(managerID, realtime.Event{
		Type: realtime.EventDailyReportSubmitted,
		Data: realtime.DailyReportSubmitted{Report: report, AgentName: agent.Name},
	})
	return report, nil
}

// Authenticate checks credentials for login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, db.ErrNotFound) {
		return model.User{}, apperr.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return model.User{}, apperr.Storage(err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return model.User{}, apperr.Unauthenticated("invalid email or password")
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, id int64) (model.User, error) {
	return s.loadUser(ctx, id)
}

// EnsureAdmin creates the bootstrap admin when no user holds email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, apperr.Storage(err)
	}
	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}
	if _, err := s.store.CreateUser(ctx, model.User{Name: "Administrator", Email: email, PasswordHash: hash, Role: model.RoleAdmin}); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return false, nil
		}
		return false, apperr.Storage(err)
	}
	s.log.Info().Str("email", email).Msg("bootstrap admin created")
	return true, nil
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
