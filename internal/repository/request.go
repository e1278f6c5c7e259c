package repository

import (
	"context"
	"time"

	"sigede/internal/cache"
	"sigede/internal/models"
	"sigede/internal/observability"
	"sigede/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	requestResource   = "Request"
	defaultListLimit  = 50
	requestsTableName = "service_requests"
)

// MaxListLimit is the largest page List returns.
const MaxListLimit = 500

// RequestFilter narrows List. Zero values mean "no constraint".
type RequestFilter struct {
	Statuses []models.RequestStatus
	// ChangedBefore keeps requests whose last status change is at or before this instant.
	ChangedBefore *time.Time
	SubmitterID   uint
	Kind          models.RequestKind
	// AfterID pages by id ascending; ignored when NewestFirst is set.
	AfterID          string
	Offset           int
	Limit            int
	NewestFirst      bool
	IncludeSubmitter bool
}

// TransitionMeta describes who moved a request and why.
type TransitionMeta struct {
	Event models.RequestEvent
	// ActorUserID is nil for system transitions.
	ActorUserID *uint
	Note        string
	At          time.Time
}

// RequestRepository is the request store contract used by services and the sweeper.
type RequestRepository interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*models.ServiceRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]models.ServiceRequest, error)
	TransitionStatus(ctx context.Context, id string, expected, next models.RequestStatus, meta TransitionMeta) (*models.ServiceRequest, error)
	History(ctx context.Context, id string) ([]models.RequestStatusHistory, error)
	CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error)
}

type requestRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewRequestRepository returns a gorm-backed RequestRepository.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{
		db:      db,
		log:     observability.NewRepoLogger(requestsTableName),
		metrics: observability.NewDatabaseMetrics(requestsTableName),
	}
}

// Create stores a new request and its submit history row. The id is assigned
// when empty; Status and LastStatusChangeAt are expected to be set by the caller.
func (r *requestRepository) Create(ctx context.Context, req *models.ServiceRequest) error {
	span, ctx := observability.StartRepositorySpan(ctx, "Create", requestsTableName)
	defer span.End()
	defer r.metrics.TrackQuery("insert")()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.LastStatusChangeAt.IsZero() {
		req.LastStatusChangeAt = time.Now().UTC()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = req.LastStatusChangeAt
	}
	submitter := req.SubmitterID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Submitter").Create(req).Error; err != nil {
			return err
		}
		return tx.Create(&models.RequestStatusHistory{
			RequestID:   req.ID,
			ToStatus:    req.Status,
			Event:       models.EventSubmit,
			ActorUserID: &submitter,
			CreatedAt:   req.LastStatusChangeAt,
		}).Error
	})
	if err != nil {
		span.SetError(err)
		r.log.LogError(ctx, err, "create")
		return storeError(err, requestResource, req.ID)
	}

	cache.InvalidateReviewSummary(ctx)
	r.log.LogCreate(ctx, map[string]any{"request_id": req.ID, "kind": req.Kind, "category": req.Category})
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	defer r.metrics.TrackQuery("select")()

	var req models.ServiceRequest
	if err := r.db.WithContext(ctx).Preload("Submitter").First(&req, "id = ?", id).Error; err != nil {
		return nil, storeError(err, requestResource, id)
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, f RequestFilter) ([]models.ServiceRequest, error) {
	defer r.metrics.TrackQuery("select")()

	q := r.db.WithContext(ctx).Model(&models.ServiceRequest{})
	if len(f.Statuses) == 1 {
		q = q.Where("status = ?", f.Statuses[0])
	} else if len(f.Statuses) > 1 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ChangedBefore != nil {
		q = q.Where("last_status_change_at <= ?", f.ChangedBefore.UTC())
	}
	if f.SubmitterID != 0 {
		q = q.Where("submitter_id = ?", f.SubmitterID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.IncludeSubmitter {
		q = q.Preload("Submitter")
	}

	if f.NewestFirst {
		q = q.Order("created_at DESC").Order("id DESC")
		if f.Offset > 0 {
			q = q.Offset(f.Offset)
		}
	} else {
		if f.AfterID != "" {
			q = q.Where("id > ?", f.AfterID)
		}
		q = q.Order("id ASC")
	}

	var out []models.ServiceRequest
	if err := q.Limit(clampLimit(f.Limit, defaultListLimit, MaxListLimit)).Find(&out).Error; err != nil {
		return nil, storeError(err, requestResource, nil)
	}
	return out, nil
}

// TransitionStatus moves id from expected to next only if the stored status
// still equals expected, and appends a history row in the same transaction.
// A missing row yields NOT_FOUND; a row in any other status yields CONFLICT.
func (r *requestRepository) TransitionStatus(ctx context.Context, id string, expected, next models.RequestStatus, meta TransitionMeta) (*models.ServiceRequest, error) {
	span, ctx := observability.StartRepositorySpan(ctx, "TransitionStatus", requestsTableName)
	defer span.End()
	span.AddAttributes(
		attribute.String("request.id", id),
		attribute.String("request.from", string(expected)),
		attribute.String("request.to", string(next)),
	)
	defer r.metrics.TrackQuery("update")()

	at := meta.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	updates := map[string]any{
		"status":                next,
		"last_status_change_at": at,
		"updated_at":            at,
	}
	if meta.ActorUserID != nil {
		updates["reviewed_by_user_id"] = *meta.ActorUserID
	}
	// Intermediate notes live in history only; the row's note belongs to
	// the terminal decision.
	if meta.Note != "" && workflow.IsTerminal(next) {
		updates["note"] = meta.Note
	}

	var updated models.ServiceRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ServiceRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.NewNotFoundError(requestResource, id)
			}
			return models.NewConflictError(requestResource, id)
		}

		from := expected
		if err := tx.Create(&models.RequestStatusHistory{
			RequestID:   id,
			FromStatus:  &from,
			ToStatus:    next,
			Event:       meta.Event,
			ActorUserID: meta.ActorUserID,
			Note:        meta.Note,
			CreatedAt:   at,
		}).Error; err != nil {
			return err
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		if !models.HasCode(err, models.CodeConflict) {
			span.SetError(err)
			r.log.LogError(ctx, err, "transition")
		}
		return nil, storeError(err, requestResource, id)
	}

	cache.InvalidateReviewSummary(ctx)
	r.log.LogUpdate(ctx, map[string]any{
		"request_id": id,
		"from":       expected,
		"to":         next,
		"event":      meta.Event,
	})
	return &updated, nil
}

func (r *requestRepository) History(ctx context.Context, id string) ([]models.RequestStatusHistory, error) {
	defer r.metrics.TrackQuery("select")()

	var rows []models.RequestStatusHistory
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError(err, requestResource, id)
	}
	return rows, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	counts := make(map[models.RequestStatus]int64)
	err := cache.Aside(ctx, cache.ReviewSummaryKey, &counts, cache.ReviewSummaryTTL, func() error {
		defer r.metrics.TrackQuery("count")()

		var rows []struct {
			Status models.RequestStatus
			Total  int64
		}
		if err := r.db.WithContext(ctx).
			Model(&models.ServiceRequest{}).
			Select("status, COUNT(*) AS total").
			Group("status").
			Scan(&rows).Error; err != nil {
			return storeError(err, requestResource, nil)
		}
		for _, row := range rows {
			counts[row.Status] = row.Total
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
