package types

import "time"

type SessionStatus string

const (
	SESSION_STATUS_OPEN    SessionStatus = "open"
	SESSION_STATUS_CLOSED  SessionStatus = "closed"
	SESSION_STATUS_TIMEOUT SessionStatus = "timeout"
)

type CloseReason string

const (
	CLOSE_REASON_MANUAL    CloseReason = "manual"
	CLOSE_REASON_TIMEOUT   CloseReason = "timeout"
	CLOSE_REASON_COMPLETED CloseReason = "completed"
)

func (r CloseReason) IsValid() bool {
	switch r {
	case CLOSE_REASON_MANUAL, CLOSE_REASON_TIMEOUT, CLOSE_REASON_COMPLETED:
		return true
	}
	return false
}

// Session is a field encounter between one enumerator and one respondent. UpdatedAt is the
// activity clock the inactivity timeout is computed from.
type Session struct {
	ID           string        `bson:"_id,omitempty" json:"id,omitempty"`
	RespondentID string        `bson:"respondentId" json:"respondentId"`
	EnumeratorID string        `bson:"enumeratorId" json:"enumeratorId"`
	StartTime    time.Time     `bson:"startTime" json:"startTime"`
	EndTime      *time.Time    `bson:"endTime,omitempty" json:"endTime,omitempty"`
	Status       SessionStatus `bson:"status" json:"status"`
	CloseReason  CloseReason   `bson:"closeReason,omitempty" json:"closeReason,omitempty"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (s Session) IsOpen() bool {
	return s.Status == SESSION_STATUS_OPEN
}

// SessionState is a session together with its live, time-derived state.
type SessionState struct {
	Session              Session       `json:"session"`
	LiveStatus           SessionStatus `json:"liveStatus"`
	TimeRemaining        time.Duration `json:"-"`
	TimeRemainingSeconds int64         `json:"timeRemainingSeconds"`
	NearTimeout          bool          `json:"nearTimeout"`
}
