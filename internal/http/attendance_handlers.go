package http

import (
	"net/http"
	"strings"
	"time"

	"teamdesk/internal/apperr"
	"teamdesk/internal/attendance"
	"teamdesk/internal/authz"
	"teamdesk/internal/model"
)

type markAttendanceRequest struct {
	Sector   string `json:"sector" validate:"notblank,max=120"`
	Location string `json:"location" validate:"notblank,max=200"`
	UserID   *int64 `json:"userId,omitempty"`
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	in := attendance.MarkInput{Sector: req.Sector, Location: req.Location}
	if req.UserID != nil {
		in.UserID = *req.UserID
	}
	// Role and ownership failures take precedence over body validation.
	if err := authz.MarkAttendance(p, in.UserID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	rec, err := s.attendance.Mark(r.Context(), p, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAttendanceStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	userID, err := queryInt64(r, "userId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status, err := s.attendance.Status(r.Context(), p, userID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (s *Server) handleAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	userID, err := queryInt64(r, "userId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	from, err := parseQueryTime(r, "from", false)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	to, err := parseQueryTime(r, "to", true)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	records, err := s.attendance.History(r.Context(), p, attendance.HistoryQuery{
		UserID: userID,
		From:   from,
		To:     to,
		Limit:  parseLimit(r, 0),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.AttendanceRecord]{Items: records})
}

// parseQueryTime accepts RFC 3339 or a local YYYY-MM-DD date. A bare date
// used as an upper bound covers the whole day.
func parseQueryTime(r *http.Request, key string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid_"+key, key+" must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		_, end := model.DayBounds(day)
		return end, nil
	}
	return day, nil
}

type timeframeRequest struct {
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

func (s *Server) handleSetTimeframe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	var req timeframeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	window, created, err := s.attendance.SetWindow(r.Context(), p, req.StartTime, req.EndTime)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, window)
}

func (s *Server) handleGetTimeframe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	managerID, err := queryInt64(r, "managerId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	window, err := s.attendance.Window(r.Context(), p, managerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

func (s *Server) handleGetAgentTimeframe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	window, err := s.attendance.AgentWindow(r.Context(), p)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}
