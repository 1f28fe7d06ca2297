package http

import (
	"net/http"

	"teamdesk/internal/model"
	"teamdesk/internal/team"
)

type createUserRequest struct {
	Name      string `json:"name" validate:"notblank,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"required,oneof=admin manager agent"`
	ManagerID *int64 `json:"managerId,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	s.createUser(w, r, req)
}

type createAgentRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	ManagerID *int64 `json:"managerId,omitempty"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	s.createUser(w, r, createUserRequest{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      string(model.RoleAgent),
		ManagerID: req.ManagerID,
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, req createUserRequest) {
	p, _ := principalFromContext(r.Context())
	if err := s.validate.Struct(req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	user, err := s.team.CreateUser(r.Context(), p, team.CreateUserInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		ManagerID: req.ManagerID,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleListTeam(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	managerID, err := queryInt64(r, "managerId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	members, err := s.team.ListTeam(r.Context(), p, managerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.User]{Items: members})
}

type createClientRequest struct {
	Name          string `json:"name" validate:"notblank,max=200"`
	Phone         string `json:"phone,omitempty" validate:"max=40"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	InsuranceType string `json:"insuranceType,omitempty" validate:"max=80"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	var req createClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	client, err := s.team.CreateClient(r.Context(), p, team.ClientInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		InsuranceType: req.InsuranceType,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	agentID, err := queryInt64(r, "agentId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	clients, err := s.team.ListClients(r.Context(), p, agentID, parseLimit(r, 100))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if clients == nil {
		clients = []model.Client{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.Client]{Items: clients})
}

type dailyReportRequest struct {
	CallsMade       int    `json:"callsMade" validate:"gte=0"`
	MeetingsHeld    int    `json:"meetingsHeld" validate:"gte=0"`
	ClientsAcquired int    `json:"clientsAcquired" validate:"gte=0"`
	Summary         string `json:"summary" validate:"max=4000"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	var req dailyReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	report, err := s.team.SubmitReport(r.Context(), p, team.ReportInput{
		CallsMade:       req.CallsMade,
		MeetingsHeld:    req.MeetingsHeld,
		ClientsAcquired: req.ClientsAcquired,
		Summary:         req.Summary,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}
