package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"sigede/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newRequest(submitter uint, at time.Time) *models.ServiceRequest {
	return &models.ServiceRequest{
		SubmitterID:        submitter,
		Kind:               models.KindLayanan,
		Category:           "surat_keterangan_domisili",
		Subject:            "Surat domisili untuk pendaftaran sekolah",
		Payload:            map[string]string{"nik": "3301010101010001", "keperluan": "sekolah"},
		Status:             models.StatusPendingLocal,
		LastStatusChangeAt: at,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	warga := createUser(t, db, "budi", models.RoleWarga)

	req := newRequest(warga.ID, t0)
	require.NoError(t, repo.Create(ctx, req))
	require.NotEmpty(t, req.ID)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingLocal, got.Status)
	assert.Equal(t, "sekolah", got.Payload["keperluan"])
	assert.True(t, got.LastStatusChangeAt.Equal(t0))
	require.NotNil(t, got.Submitter)
	assert.Equal(t, "budi", got.Submitter.Username)

	history, err := repo.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, models.EventSubmit, history[0].Event)
	assert.Equal(t, warga.ID, *history[0].ActorUserID)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestRequestRepository_TransitionStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	warga := createUser(t, db, "siti", models.RoleWarga)
	kadus := createUser(t, db, "pak_kadus", models.RoleKadus)

	req := newRequest(warga.ID, t0)
	require.NoError(t, repo.Create(ctx, req))

	at := t0.Add(3 * time.Hour)
	updated, err := repo.TransitionStatus(ctx, req.ID, models.StatusPendingLocal, models.StatusPendingAdmin, TransitionMeta{
		Event:       models.EventLocalApprove,
		ActorUserID: &kadus.ID,
		Note:        "Data sesuai",
		At:          at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAdmin, updated.Status)
	assert.True(t, updated.LastStatusChangeAt.Equal(at))
	require.NotNil(t, updated.ReviewedByUserID)
	assert.Equal(t, kadus.ID, *updated.ReviewedByUserID)
	assert.Empty(t, updated.Note, "a forwarding note is not the request's decision note")

	t.Run("stale expectation conflicts", func(t *testing.T) {
		_, err := repo.TransitionStatus(ctx, req.ID, models.StatusPendingLocal, models.StatusAutoApproved, TransitionMeta{
			Event: models.EventSweepTimeout,
			At:    at.Add(time.Hour),
		})
		assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)

		got, err := repo.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingAdmin, got.Status, "conflict leaves the row untouched")
	})

	t.Run("missing row is not found", func(t *testing.T) {
		_, err := repo.TransitionStatus(ctx, "missing", models.StatusPendingLocal, models.StatusPendingAdmin, TransitionMeta{Event: models.EventLocalApprove})
		assert.True(t, models.HasCode(err, models.CodeNotFound), "got %v", err)
	})

	history, err := repo.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2, "failed transitions write no history")
	require.NotNil(t, history[1].FromStatus)
	assert.Equal(t, models.StatusPendingLocal, *history[1].FromStatus)
	assert.Equal(t, models.StatusPendingAdmin, history[1].ToStatus)
	assert.Equal(t, "Data sesuai", history[1].Note)
}

func TestRequestRepository_ConcurrentTransitionsCommitOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	warga := createUser(t, db, "joko", models.RoleWarga)
	kadus := createUser(t, db, "kadus_joko", models.RoleKadus)

	req := newRequest(warga.ID, t0)
	require.NoError(t, repo.Create(ctx, req))

	attempts := []struct {
		next models.RequestStatus
		meta TransitionMeta
	}{
		{models.StatusPendingAdmin, TransitionMeta{Event: models.EventLocalApprove, ActorUserID: &kadus.ID, At: t0.Add(25 * time.Hour)}},
		{models.StatusAutoApproved, TransitionMeta{Event: models.EventSweepTimeout, At: t0.Add(25 * time.Hour)}},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(attempts))
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, next models.RequestStatus, meta TransitionMeta) {
			defer wg.Done()
			_, errs[i] = repo.TransitionStatus(ctx, req.ID, models.StatusPendingLocal, next, meta)
		}(i, a.next, a.meta)
	}
	wg.Wait()

	committed, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case models.HasCode(err, models.CodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicts)

	history, err := repo.History(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRequestRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	a := createUser(t, db, "warga_a", models.RoleWarga)
	b := createUser(t, db, "warga_b", models.RoleWarga)

	old := newRequest(a.ID, t0)
	edge := newRequest(a.ID, t0.Add(time.Hour))
	fresh := newRequest(b.ID, t0.Add(2*time.Hour))
	complaint := newRequest(b.ID, t0)
	complaint.Kind = models.KindPengaduan
	complaint.Category = "infrastruktur"
	for _, r := range []*models.ServiceRequest{old, edge, fresh, complaint} {
		require.NoError(t, repo.Create(ctx, r))
	}
	_, err := repo.TransitionStatus(ctx, complaint.ID, models.StatusPendingLocal, models.StatusRejected, TransitionMeta{
		Event: models.EventReject, Note: "Duplikat laporan", At: t0.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	cutoff := t0.Add(time.Hour)
	stale, err := repo.List(ctx, RequestFilter{
		Statuses:      []models.RequestStatus{models.StatusPendingLocal},
		ChangedBefore: &cutoff,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{old.ID, edge.ID}, ids(stale), "cutoff is inclusive")

	mine, err := repo.List(ctx, RequestFilter{SubmitterID: b.ID, NewestFirst: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fresh.ID, complaint.ID}, ids(mine))

	complaints, err := repo.List(ctx, RequestFilter{Kind: models.KindPengaduan})
	require.NoError(t, err)
	assert.Equal(t, []string{complaint.ID}, ids(complaints))

	page1, err := repo.List(ctx, RequestFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := repo.List(ctx, RequestFilter{Limit: 2, AfterID: page1[1].ID})
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.NotContains(t, ids(page2), page1[0].ID)
	assert.Less(t, page1[1].ID, page2[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[models.StatusPendingLocal])
	assert.Equal(t, int64(1), counts[models.StatusRejected])
}

func ids(rs []models.ServiceRequest) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
