package workflow

import (
	"strings"

	"sigede/internal/models"
)

// legacyStatuses maps status strings written by earlier portal versions onto
// the canonical model. Two vocabularies were in use: the Indonesian UI labels
// and the role-suffixed codes of the approval pages.
var legacyStatuses = map[string]models.RequestStatus{
	"menunggu":           models.StatusPendingLocal,
	"pending":            models.StatusPendingLocal,
	"pending_kadus":      models.StatusPendingLocal,
	"diproses":           models.StatusPendingAdmin,
	"approved_kadus":     models.StatusPendingAdmin,
	"disetujui":          models.StatusCompleted,
	"selesai":            models.StatusCompleted,
	"approved_admin":     models.StatusCompleted,
	"approved":           models.StatusCompleted,
	"ditolak":            models.StatusRejected,
	"disetujui_otomatis": models.StatusAutoApproved,
}

// NormalizeLegacy maps any known status spelling, canonical or legacy, to a
// canonical status. Matching ignores case and surrounding whitespace.
func NormalizeLegacy(raw string) (models.RequestStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := ParseStatus(key); ok {
		return s, true
	}
	s, ok := legacyStatuses[key]
	return s, ok
}
