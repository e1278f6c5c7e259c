package presentation

import (
	"strings"
	"testing"

	"sigede/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		label    string
		severity Severity
		status   models.RequestStatus
	}{
		{"pending_local_approval", "Menunggu persetujuan Kadus", SeverityWarning, models.StatusPendingLocal},
		{"pending_admin_approval", "Menunggu persetujuan akhir", SeverityInfo, models.StatusPendingAdmin},
		{"completed", "Selesai", SeveritySuccess, models.StatusCompleted},
		{"auto_approved", "Disetujui otomatis", SeveritySuccess, models.StatusAutoApproved},
		{"rejected", "Ditolak", SeverityDanger, models.StatusRejected},
		{"menunggu", "Menunggu persetujuan Kadus", SeverityWarning, models.StatusPendingLocal},
		{"approved_kadus", "Menunggu persetujuan akhir", SeverityInfo, models.StatusPendingAdmin},
		{"selesai", "Selesai", SeveritySuccess, models.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := Present(tt.raw)
			assert.Equal(t, tt.label, v.Label)
			assert.Equal(t, tt.severity, v.Severity)
			assert.Equal(t, tt.status, v.Status)
		})
	}
}

func TestPresent_UnknownNeverPanics(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", " ", "archived", "PENDING?", "\x00\xff", strings.Repeat("z", 10_000), "😀", "completed; DROP TABLE",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			v := Present(in)
			assert.Equal(t, UnknownLabel, v.Label)
			assert.Equal(t, SeverityInfo, v.Severity)
		})
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := Catalog()
	assert.Len(t, c, 5)
	assert.Equal(t, models.StatusPendingLocal, c[0].Status)
	for _, v := range c {
		assert.NotEqual(t, UnknownLabel, v.Label)
		assert.Equal(t, v, PresentStatus(v.Status))
	}
}
