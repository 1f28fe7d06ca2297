package realtime

import (
	"encoding/json"

	"teamdesk/internal/model"
	"teamdesk/internal/timewindow"
)

type EventType string

const (
	EventAttendanceMarked           EventType = "attendance_marked"
	EventAttendanceTimeframeUpdated EventType = "attendance_timeframe_updated"
	EventAgentAdded                 EventType = "agent_added"
	EventClientAdded                EventType = "client_added"
	EventUserCreated                EventType = "user_created"
	EventDailyReportSubmitted       EventType = "daily_report_submitted"
)

// Event is the server push frame: {"type": ..., "data": {...}}.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type AttendanceMarked struct {
	Attendance    model.AttendanceRecord `json:"attendance"`
	AgentName     string                 `json:"agentName"`
	FormattedTime string                 `json:"formattedTime"`
	Sector        string                 `json:"sector"`
	Location      string                 `json:"location"`
}

type TimeframeUpdated struct {
	ManagerID int64  `json:"managerId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func NewTimeframeUpdated(managerID int64, w timewindow.Window) TimeframeUpdated {
	return TimeframeUpdated{ManagerID: managerID, StartTime: w.StartTime(), EndTime: w.EndTime()}
}

type AgentAdded struct {
	Agent     model.User `json:"agent"`
	ManagerID int64      `json:"managerId"`
}

type UserCreated struct {
	User      model.User `json:"user"`
	CreatedBy int64      `json:"createdBy"`
}

type ClientAdded struct {
	Client    model.Client `json:"client"`
	AgentName string       `json:"agentName"`
}

type DailyReportSubmitted struct {
	Report    model.DailyReport `json:"report"`
	AgentName string            `json:"agentName"`
}

// Client frames.
const (
	MessageAuthenticate  = "authenticate"
	MessageAuthenticated = "authenticated"
	MessageError         = "error"
)

type AuthenticateMessage struct {
	Type      string `json:"type"`
	UserID    int64  `json:"userId"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"managerId"`
}

type ReplyMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
