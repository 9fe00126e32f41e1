package domain

import (
	"fmt"
	"time"
)

type EventType int

const (
	EventSuccess EventType = iota + 1
	EventError
	EventWarning
	EventInfo
)

func (t EventType) String() string {
	switch t {
	case EventSuccess:
		return "success"
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	case EventInfo:
		return "info"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a notification for the operator.
type Event struct {
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SessionID   string    `json:"session_id,omitempty"`
	At          time.Time `json:"at"`
}
