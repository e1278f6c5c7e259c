package workflow

import (
	"testing"

	"sigede/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    models.UserRole
		action  Action
		allowed bool
	}{
		{models.RoleWarga, ActionSubmitRequest, true},
		{models.RoleWarga, ActionViewReviewQueue, false},
		{models.RoleWarga, ActionLocalApprove, false},
		{models.RoleKadus, ActionViewReviewQueue, true},
		{models.RoleKadus, ActionLocalApprove, true},
		{models.RoleKadus, ActionRejectLocal, true},
		{models.RoleKadus, ActionRejectAdmin, false},
		{models.RoleKadus, ActionAdminApprove, false},
		{models.RoleKadus, ActionRunSweep, false},
		{models.RoleAdmin, ActionAdminApprove, true},
		{models.RoleAdmin, ActionRejectLocal, true},
		{models.RoleAdmin, ActionRejectAdmin, true},
		{models.RoleAdmin, ActionRunSweep, true},
		{models.RoleAdmin, ActionManageUsers, true},
		{models.RoleAdmin, ActionLocalApprove, false},
		{models.RoleAdmin, ActionSweepTimeout, false},
		{RoleSystem, ActionSweepTimeout, true},
		{RoleSystem, ActionAdminApprove, false},
		{"", ActionSubmitRequest, false},
		{"lurah", ActionAdminApprove, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, Can(tt.role, tt.action), "%s/%s", tt.role, tt.action)
	}
}

func TestCapabilities_CoversEveryAction(t *testing.T) {
	t.Parallel()

	caps := Capabilities(models.RoleKadus)
	assert.Len(t, caps, len(allActions))
	assert.True(t, caps[ActionLocalApprove])
	assert.False(t, caps[ActionAdminApprove])
}

func TestActor(t *testing.T) {
	t.Parallel()

	assert.True(t, SystemActor().IsSystem())
	assert.False(t, SystemActor().Authenticated())
	assert.Equal(t, Actor{}, UserActor(nil))

	a := UserActor(&models.User{ID: 7, Role: models.RoleKadus})
	assert.True(t, a.Authenticated())
	assert.Equal(t, uint(7), a.UserID)
}

func TestNormalizeLegacy(t *testing.T) {
	t.Parallel()

	tests := map[string]models.RequestStatus{
		"menunggu":               models.StatusPendingLocal,
		"  Pending_Kadus ":       models.StatusPendingLocal,
		"diproses":               models.StatusPendingAdmin,
		"approved_kadus":         models.StatusPendingAdmin,
		"disetujui":              models.StatusCompleted,
		"selesai":                models.StatusCompleted,
		"approved_admin":         models.StatusCompleted,
		"ditolak":                models.StatusRejected,
		"auto_approved":          models.StatusAutoApproved,
		"pending_admin_approval": models.StatusPendingAdmin,
	}
	for raw, expected := range tests {
		got, ok := NormalizeLegacy(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, expected, got, raw)
	}

	_, ok := NormalizeLegacy("dibatalkan")
	assert.False(t, ok)
	_, ok = NormalizeLegacy("")
	assert.False(t, ok)
}
