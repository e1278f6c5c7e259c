package notifications

import (
	"encoding/json"
	"time"

	"sigede/internal/models"
	"sigede/internal/presentation"
)

// Event types pushed to websocket clients.
const (
	EventRequestStatusChanged = "request_status_changed"
	EventMessagesDropped      = "messages_dropped"
)

// Envelope is the wire format of every realtime message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusChange tells a submitter that one of their requests moved.
type StatusChange struct {
	RequestID   string               `json:"request_id"`
	SubmitterID uint                 `json:"-"`
	Subject     string               `json:"subject"`
	From        models.RequestStatus `json:"from"`
	To          models.RequestStatus `json:"to"`
	Event       models.RequestEvent  `json:"event"`
	View        presentation.View    `json:"view"`
	Note        string               `json:"note,omitempty"`
	ChangedAt   time.Time            `json:"changed_at"`
}

// NewStatusChange builds the notification for a request that just left from.
func NewStatusChange(req *models.ServiceRequest, from models.RequestStatus, event models.RequestEvent) StatusChange {
	return StatusChange{
		RequestID:   req.ID,
		SubmitterID: req.SubmitterID,
		Subject:     req.Subject,
		From:        from,
		To:          req.Status,
		Event:       event,
		View:        presentation.PresentStatus(req.Status),
		Note:        req.Note,
		ChangedAt:   req.LastStatusChangeAt,
	}
}

func encode(eventType string, payload any) (string, error) {
	b, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
