package workflow

import "sigede/internal/models"

// RoleSystem is the role carried by scheduled, non-human actors.
const RoleSystem models.UserRole = "system"

// Action names a capability checked by Can.
type Action string

const (
	ActionSubmitRequest   Action = "submit_request"
	ActionViewReviewQueue Action = "view_review_queue"
	ActionLocalApprove    Action = "local_approve"
	ActionAdminApprove    Action = "admin_approve"
	ActionRejectLocal     Action = "reject_pending_local"
	ActionRejectAdmin     Action = "reject_pending_admin"
	ActionSweepTimeout    Action = "sweep_timeout"
	ActionRunSweep        Action = "run_sweep"
	ActionManageUsers     Action = "manage_users"
)

var allActions = []Action{
	ActionSubmitRequest,
	ActionViewReviewQueue,
	ActionLocalApprove,
	ActionAdminApprove,
	ActionRejectLocal,
	ActionRejectAdmin,
	ActionSweepTimeout,
	ActionRunSweep,
	ActionManageUsers,
}

// Actor is the explicit identity on whose behalf an operation runs.
type Actor struct {
	UserID uint
	Role   models.UserRole
}

// UserActor builds an Actor from a loaded user record.
func UserActor(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.ID, Role: u.Role}
}

// SystemActor is the actor used by the auto-approval sweeper.
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// IsSystem reports whether the actor is the scheduled system actor.
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// Authenticated reports whether the actor is a known human user.
func (a Actor) Authenticated() bool {
	return a.UserID != 0 && a.Role.Valid()
}

// Can is the single capability check for every role-guarded operation.
func Can(role models.UserRole, action Action) bool {
	switch role {
	case models.RoleAdmin:
		return action != ActionLocalApprove && action != ActionSweepTimeout
	case models.RoleKadus:
		return action == ActionSubmitRequest || action == ActionViewReviewQueue ||
			action == ActionLocalApprove || action == ActionRejectLocal
	case models.RoleWarga:
		return action == ActionSubmitRequest
	case RoleSystem:
		return action == ActionSweepTimeout
	default:
		return false
	}
}

// Capabilities evaluates every action for a role.
func Capabilities(role models.UserRole) map[Action]bool {
	out := make(map[Action]bool, len(allActions))
	for _, a := range allActions {
		out[a] = Can(role, a)
	}
	return out
}
