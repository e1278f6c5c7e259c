package models

import "time"

// RequestStatus is the approval state of a service request.
type RequestStatus string

const (
	// StatusPendingLocal awaits the hamlet head's decision.
	StatusPendingLocal RequestStatus = "pending_local_approval"
	// StatusPendingAdmin awaits final approval by a village administrator.
	StatusPendingAdmin RequestStatus = "pending_admin_approval"
	// StatusCompleted is terminal: approved by an administrator.
	StatusCompleted RequestStatus = "completed"
	// StatusRejected is terminal: rejected with a reason.
	StatusRejected RequestStatus = "rejected"
	// StatusAutoApproved is terminal: promoted by the sweeper after the local approver timed out.
	StatusAutoApproved RequestStatus = "auto_approved"
)

// RequestEvent names a workflow event that moves a request between statuses.
type RequestEvent string

const (
	EventSubmit       RequestEvent = "submit"
	EventLocalApprove RequestEvent = "local_approve"
	EventAdminApprove RequestEvent = "admin_approve"
	EventReject       RequestEvent = "reject"
	EventSweepTimeout RequestEvent = "sweep_timeout"
)

// RequestKind separates civic document requests from complaints.
type RequestKind string

const (
	// KindLayanan is a public-service document request.
	KindLayanan RequestKind = "layanan"
	// KindPengaduan is a complaint or aspiration.
	KindPengaduan RequestKind = "pengaduan"
)

// ServiceRequest is a citizen-submitted item that travels through the approval workflow.
// Rows are never deleted.
type ServiceRequest struct {
	ID                 string            `gorm:"primaryKey;size:36" json:"id"`
	SubmitterID        uint              `gorm:"not null;index" json:"submitter_id"`
	Submitter          *User             `gorm:"foreignKey:SubmitterID" json:"submitter,omitempty"`
	Kind               RequestKind       `gorm:"size:16;not null;index" json:"kind"`
	Category           string            `gorm:"size:64;not null" json:"category"`
	Subject            string            `gorm:"size:160;not null" json:"subject"`
	Payload            map[string]string `gorm:"type:text;serializer:json" json:"payload"`
	Status             RequestStatus     `gorm:"size:32;not null;index:idx_service_requests_status_changed,priority:1" json:"status"`
	LastStatusChangeAt time.Time         `gorm:"not null;index:idx_service_requests_status_changed,priority:2" json:"last_status_change_at"`
	ReviewedByUserID   *uint             `json:"reviewed_by_user_id"`
	Note               string            `gorm:"type:text" json:"note"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// RequestStatusHistory is one append-only audit row per status transition.
// ActorUserID is nil for transitions made by the sweeper.
type RequestStatusHistory struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	RequestID   string         `gorm:"size:36;not null;index" json:"request_id"`
	FromStatus  *RequestStatus `gorm:"size:32" json:"from_status"`
	ToStatus    RequestStatus  `gorm:"size:32;not null" json:"to_status"`
	Event       RequestEvent   `gorm:"size:32;not null" json:"event"`
	ActorUserID *uint          `json:"actor_user_id"`
	Note        string         `gorm:"type:text" json:"note"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName returns the database table name for RequestStatusHistory.
func (RequestStatusHistory) TableName() string {
	return "request_status_history"
}
