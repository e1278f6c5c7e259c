// Package workflow holds the request approval state machine: statuses, the
// transition table and the guards applied to every transition.
package workflow

import (
	"strings"
	"time"

	"sigede/internal/models"
)

type edge struct {
	from  models.RequestStatus
	event models.RequestEvent
}

type rule struct {
	to             models.RequestStatus
	action         Action
	needsReason    bool
	needsStaleness bool
}

// transitions is the complete table. Anything absent is an invalid transition.
var transitions = map[edge]rule{
	{"", models.EventSubmit}: {
		to: models.StatusPendingLocal, action: ActionSubmitRequest,
	},
	{models.StatusPendingLocal, models.EventLocalApprove}: {
		to: models.StatusPendingAdmin, action: ActionLocalApprove,
	},
	{models.StatusPendingLocal, models.EventReject}: {
		to: models.StatusRejected, action: ActionRejectLocal, needsReason: true,
	},
	{models.StatusPendingLocal, models.EventSweepTimeout}: {
		to: models.StatusAutoApproved, action: ActionSweepTimeout, needsStaleness: true,
	},
	{models.StatusPendingAdmin, models.EventAdminApprove}: {
		to: models.StatusCompleted, action: ActionAdminApprove,
	},
	{models.StatusPendingAdmin, models.EventReject}: {
		to: models.StatusRejected, action: ActionRejectAdmin, needsReason: true,
	},
}

var orderedStatuses = []models.RequestStatus{
	models.StatusPendingLocal,
	models.StatusPendingAdmin,
	models.StatusCompleted,
	models.StatusRejected,
	models.StatusAutoApproved,
}

// Input describes one attempted transition.
type Input struct {
	From   models.RequestStatus
	Event  models.RequestEvent
	Actor  Actor
	Reason string

	// Staleness inputs, consulted only for sweep_timeout.
	Now        time.Time
	LastChange time.Time
	Threshold  time.Duration
}

// Transition evaluates the table and guards and returns the resulting status.
// It never touches storage.
func Transition(in Input) (models.RequestStatus, error) {
	if in.Event != models.EventSubmit && (!Known(in.From) || IsTerminal(in.From)) {
		return "", models.NewInvalidTransitionError(in.From, string(in.Event))
	}

	r, ok := transitions[edge{in.From, in.Event}]
	if !ok {
		return "", models.NewInvalidTransitionError(in.From, string(in.Event))
	}

	if !in.Actor.IsSystem() && !in.Actor.Authenticated() {
		return "", models.NewUnauthorizedError("an authenticated user is required")
	}
	if !Can(in.Actor.Role, r.action) {
		return "", models.NewUnauthorizedError("your role may not " + strings.ReplaceAll(string(r.action), "_", " "))
	}

	if r.needsReason && strings.TrimSpace(in.Reason) == "" {
		return "", models.NewMissingReasonError()
	}

	if r.needsStaleness && !Stale(in.LastChange, in.Now, in.Threshold) {
		return "", models.NewInvalidTransitionError(in.From, string(in.Event)+" before the approval window elapsed")
	}

	return r.to, nil
}

// Next reports the status an event leads to from the given status, ignoring guards.
func Next(from models.RequestStatus, event models.RequestEvent) (models.RequestStatus, bool) {
	r, ok := transitions[edge{from, event}]
	return r.to, ok
}

// Stale reports whether a request last changed at lastChange is due for
// auto-approval at now. The boundary is inclusive.
func Stale(lastChange, now time.Time, threshold time.Duration) bool {
	return !lastChange.After(Cutoff(now, threshold))
}

// Cutoff is the latest last-change time that counts as stale at now.
func Cutoff(now time.Time, threshold time.Duration) time.Time {
	return now.Add(-threshold)
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s models.RequestStatus) bool {
	switch s {
	case models.StatusCompleted, models.StatusRejected, models.StatusAutoApproved:
		return true
	}
	return false
}

// Known reports whether s is one of the canonical statuses.
func Known(s models.RequestStatus) bool {
	for _, v := range orderedStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus accepts only canonical status values.
func ParseStatus(raw string) (models.RequestStatus, bool) {
	s := models.RequestStatus(strings.TrimSpace(raw))
	return s, Known(s)
}

// AllStatuses returns the canonical statuses in approval order.
func AllStatuses() []models.RequestStatus {
	out := make([]models.RequestStatus, len(orderedStatuses))
	copy(out, orderedStatuses)
	return out
}
