package v1alpha1

import (
	"encoding/json"
	"time"
)

// SignalType identifies a frame on the viewer push channel
type SignalType string

const (
	// SignalJoinRoom is sent by a client once per connection to enter its
	// role-scoped broadcast group
	SignalJoinRoom SignalType = "join-room"
	// SignalRequestCurrent asks the authority for the currently active content
	SignalRequestCurrent SignalType = "request-current-content"
	// SignalContentRefresh hints that clients should re-request current content
	SignalContentRefresh SignalType = "content-refresh"
	// SignalCurrentBroadcast is an unsolicited authoritative content update
	SignalCurrentBroadcast SignalType = "current-content-broadcast"
	// SignalCurrentResponse is the correlated reply to SignalRequestCurrent
	SignalCurrentResponse SignalType = "current-content-response"
	// SignalScheduleCreated announces a newly created schedule
	SignalScheduleCreated SignalType = "schedule-created"
)

// SignalMessage is the envelope for every frame on the push channel
type SignalMessage struct {
	// Event names the frame type
	Event SignalType `json:"event"`
	// Data carries the type-specific payload, decoded lazily by consumers
	Data json.RawMessage `json:"data,omitempty"`
}

// NewSignalMessage encodes payload into a SignalMessage envelope
func NewSignalMessage(event SignalType, payload interface{}) (SignalMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SignalMessage{}, err
	}
	return SignalMessage{Event: event, Data: data}, nil
}

// JoinRoom identifies the client joining its broadcast group
type JoinRoom struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// RequestCurrent asks for the active content, keyed by a client-generated
// correlation id so the reply can be matched among in-flight requests
type RequestCurrent struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

// CurrentContent is the payload of broadcast and response frames. RequestID
// is set only on correlated responses.
type CurrentContent struct {
	Success   bool         `json:"success"`
	Data      *ContentItem `json:"data"`
	Message   string       `json:"message,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

// ContentRefresh hints that server-side schedule state changed
type ContentRefresh struct {
	Message string `json:"message,omitempty"`
}

// ScheduleCreated announces a new schedule to operator consoles
type ScheduleCreated struct {
	Schedule Schedule `json:"schedule"`
}
