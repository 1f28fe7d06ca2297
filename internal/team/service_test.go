package team

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"teamdesk/internal/apperr"
	"teamdesk/internal/authz"
	"teamdesk/internal/db/memdb"
	"teamdesk/internal/model"
	"teamdesk/internal/realtime"
)

type delivery struct {
	kind   string
	target any
	event  realtime.Event
}

type recorder struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recorder) add(kind string, target any, ev realtime.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{kind: kind, target: target, event: ev})
	return 1
}

func (r *recorder) NotifyUser(userID int64, ev realtime.Event) int { return r.add("user", userID, ev) }

func (r *recorder) NotifyByRole(role model.Role, ev realtime.Event) int {
	return r.add("role", role, ev)
}

func (r *recorder) NotifyManagerTeam(managerID int64, ev realtime.Event) int {
	return r.add("team", managerID, ev)
}

func (r *recorder) types() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.EventType
	for _, d := range r.out {
		out = append(out, d.event.Type)
	}
	return out
}

type markedSet map[int64]bool

func (m markedSet) MarkedToday(_ context.Context, userID int64) (bool, error) {
	return m[userID], nil
}

type fixture struct {
	svc     *Service
	store   *memdb.Store
	events  *recorder
	marked  markedSet
	admin   model.User
	manager model.User
	agent   model.User
}

func fastHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash), err
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memdb.New()
	admin, err := store.CreateUser(ctx, model.User{Name: "Root", Email: "root@example.com", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	manager, err := store.CreateUser(ctx, model.User{Name: "Maria", Email: "maria@example.com", Role: model.RoleManager})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	agent, err := store.CreateUser(ctx, model.User{Name: "Ana", Email: "ana@example.com", Role: model.RoleAgent, ManagerID: &manager.ID})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	events := &recorder{}
	marked := markedSet{}
	svc := NewService(store, marked, events, zerolog.Nop())
	svc.hash = fastHash
	return fixture{svc: svc, store: store, events: events, marked: marked, admin: admin, manager: manager, agent: agent}
}

func principal(u model.User) authz.Principal {
	return authz.Principal{UserID: u.ID, Role: u.Role}
}

func TestAdminCreatedAgentNotifiesTeamAndAdmins(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.CreateUser(context.Background(), principal(f.admin), CreateUserInput{
		Name: "Bruno", Email: " Bruno@Example.com ", Password: "s3cretpass", Role: "agent", ManagerID: &f.manager.ID,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "bruno@example.com" || user.Manager() != f.manager.ID {
		t.Fatalf("unexpected user %+v", user)
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.out) != 2 {
		t.Fatalf("expected two notifications, got %d", len(f.events.out))
	}
	added, created := f.events.out[0], f.events.out[1]
	if added.event.Type != realtime.EventAgentAdded || added.kind != "team" || added.target != f.manager.ID {
		t.Fatalf("unexpected agent_added delivery %+v", added)
	}
	if created.event.Type != realtime.EventUserCreated || created.kind != "role" || created.target != model.RoleAdmin {
		t.Fatalf("unexpected user_created delivery %+v", created)
	}
	if payload := created.event.Data.(realtime.UserCreated); payload.CreatedBy != f.admin.ID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestManagerCreatedAgentJoinsOwnTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.CreateAgent(ctx, principal(f.manager), CreateUserInput{Name: "Caio", Email: "caio@example.com", Password: "s3cretpass"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if user.Role != model.RoleAgent || user.Manager() != f.manager.ID {
		t.Fatalf("unexpected agent %+v", user)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != realtime.EventAgentAdded {
		t.Fatalf("expected only agent_added, got %v", got)
	}

	other := f.manager.ID + 1000
	if _, err := f.svc.CreateAgent(ctx, principal(f.manager), CreateUserInput{Name: "D", Email: "d@example.com", Password: "s3cretpass", ManagerID: &other}); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected foreign team to be forbidden, got %v", err)
	}
	if _, err := f.svc.CreateUser(ctx, principal(f.manager), CreateUserInput{Name: "E", Email: "e@example.com", Password: "s3cretpass", Role: "manager"}); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected managers to create agents only, got %v", err)
	}
	if _, err := f.svc.CreateAgent(ctx, principal(f.agent), CreateUserInput{Name: "F", Email: "f@example.com", Password: "s3cretpass"}); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected agents to be forbidden, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := principal(f.admin)
	cases := map[string]CreateUserInput{
		"role":     {Name: "X", Email: "x@example.com", Password: "s3cretpass", Role: "owner"},
		"name":     {Name: " ", Email: "x@example.com", Password: "s3cretpass", Role: "agent"},
		"email":    {Name: "X", Email: "not-an-email", Password: "s3cretpass", Role: "agent"},
		"password": {Name: "X", Email: "x@example.com", Password: "short", Role: "agent"},
		"taken":    {Name: "X", Email: "ANA@example.com", Password: "s3cretpass", Role: "agent"},
		"manager":  {Name: "X", Email: "x@example.com", Password: "s3cretpass", Role: "manager", ManagerID: &f.manager.ID},
	}
	for name, in := range cases {
		if _, err := f.svc.CreateUser(ctx, admin, in); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := f.svc.CreateUser(ctx, admin, CreateUserInput{Name: "X", Email: "x@example.com", Password: "s3cretpass", Role: "agent", ManagerID: &f.agent.ID}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected non-manager id to be rejected, got %v", err)
	}
}

func TestCreateClientRequiresAttendance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := ClientInput{Name: "Acme Ltd", Email: "ops@acme.example", InsuranceType: "health"}

	if _, err := f.svc.CreateClient(ctx, principal(f.agent), in); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state before attendance, got %v", err)
	}
	if n := len(f.events.types()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}

	f.marked[f.agent.ID] = true
	client, err := f.svc.CreateClient(ctx, principal(f.agent), in)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.AgentID != f.agent.ID {
		t.Fatalf("unexpected client %+v", client)
	}
	f.events.mu.Lock()
	got := f.events.out[0]
	f.events.mu.Unlock()
	if got.event.Type != realtime.EventClientAdded || got.target != f.manager.ID {
		t.Fatalf("unexpected delivery %+v", got)
	}

	if _, err := f.svc.CreateClient(ctx, principal(f.manager), in); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected managers to be forbidden, got %v", err)
	}
}

func TestListClientsScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.marked[f.agent.ID] = true
	if _, err := f.svc.CreateClient(ctx, principal(f.agent), ClientInput{Name: "One"}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	for _, p := range []authz.Principal{principal(f.agent), principal(f.manager), principal(f.admin)} {
		clients, err := f.svc.ListClients(ctx, p, 0, 0)
		if err != nil || len(clients) != 1 {
			t.Fatalf("%s: expected one client, got %d (%v)", p.Role, len(clients), err)
		}
	}

	otherManager, err := f.store.CreateUser(ctx, model.User{Name: "Other", Email: "other@example.com", Role: model.RoleManager})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	clients, err := f.svc.ListClients(ctx, principal(otherManager), 0, 0)
	if err != nil || len(clients) != 0 {
		t.Fatalf("expected other team to see nothing, got %d (%v)", len(clients), err)
	}
	if _, err := f.svc.ListClients(ctx, principal(otherManager), f.agent.ID, 0); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected foreign agent to be forbidden, got %v", err)
	}
}

func TestSubmitReportNotifiesManager(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return time.Date(2026, 3, 10, 17, 45, 0, 0, time.Local) })

	report, err := f.svc.SubmitReport(context.Background(), principal(f.agent), ReportInput{CallsMade: 12, MeetingsHeld: 3, ClientsAcquired: 1, Summary: " good day "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.ReportDate != "2026-03-10" || report.ManagerID != f.manager.ID || report.Summary != "good day" {
		t.Fatalf("unexpected report %+v", report)
	}
	f.events.mu.Lock()
	got := f.events.out[0]
	f.events.mu.Unlock()
	if got.kind != "user" || got.target != f.manager.ID || got.event.Type != realtime.EventDailyReportSubmitted {
		t.Fatalf("unexpected delivery %+v", got)
	}

	if _, err := f.svc.SubmitReport(context.Background(), principal(f.agent), ReportInput{CallsMade: -1}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected negative counts to fail, got %v", err)
	}
}

func TestListTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	members, err := f.svc.ListTeam(ctx, principal(f.manager), 0)
	if err != nil || len(members) != 1 || members[0].ID != f.agent.ID {
		t.Fatalf("unexpected team %+v (%v)", members, err)
	}
	if _, err := f.svc.ListTeam(ctx, principal(f.admin), 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected admin without managerId to fail, got %v", err)
	}
	if _, err := f.svc.ListTeam(ctx, principal(f.agent), f.manager.ID); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected agents to be forbidden, got %v", err)
	}
}

func TestAuthenticateAndEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.EnsureAdmin(ctx, "boss@example.com", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("expected bootstrap admin, got %v (%v)", created, err)
	}
	created, err = f.svc.EnsureAdmin(ctx, "BOSS@example.com", "bootstrap-pass")
	if err != nil || created {
		t.Fatalf("expected existing admin to be kept, got %v (%v)", created, err)
	}

	user, err := f.svc.Authenticate(ctx, "boss@example.com", "bootstrap-pass")
	if err != nil || user.Role != model.RoleAdmin {
		t.Fatalf("expected login, got %+v (%v)", user, err)
	}
	if _, err := f.svc.Authenticate(ctx, "boss@example.com", "wrong"); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected bad password to fail, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "nobody@example.com", "x"); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unknown user to fail, got %v", err)
	}
}
