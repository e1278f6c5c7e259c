// Package presentation maps request statuses to display labels and badge severities.
package presentation

import (
	"sigede/internal/models"
	"sigede/internal/workflow"
)

// Severity is the badge tone used by the portal UI.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityDanger  Severity = "danger"
)

// UnknownLabel is shown for any status the mapper does not recognise.
const UnknownLabel = "Status tidak diketahui"

// View is the presentation of one status.
type View struct {
	Status   models.RequestStatus `json:"status"`
	Label    string               `json:"label"`
	Severity Severity             `json:"severity"`
}

var views = map[models.RequestStatus]View{
	models.StatusPendingLocal: {models.StatusPendingLocal, "Menunggu persetujuan Kadus", SeverityWarning},
	models.StatusPendingAdmin: {models.StatusPendingAdmin, "Menunggu persetujuan akhir", SeverityInfo},
	models.StatusCompleted:    {models.StatusCompleted, "Selesai", SeveritySuccess},
	models.StatusAutoApproved: {models.StatusAutoApproved, "Disetujui otomatis", SeveritySuccess},
	models.StatusRejected:     {models.StatusRejected, "Ditolak", SeverityDanger},
}

// Present returns the view for a raw status string. Legacy spellings are
// normalised first; anything else yields the unknown view.
func Present(raw string) View {
	if s, ok := workflow.NormalizeLegacy(raw); ok {
		if v, found := views[s]; found {
			return v
		}
	}
	return View{Status: models.RequestStatus(raw), Label: UnknownLabel, Severity: SeverityInfo}
}

// PresentStatus is Present for an already typed status.
func PresentStatus(s models.RequestStatus) View {
	return Present(string(s))
}

// Catalog lists the views of every canonical status in approval order.
func Catalog() []View {
	statuses := workflow.AllStatuses()
	out := make([]View, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, views[s])
	}
	return out
}
