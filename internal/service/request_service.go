package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sigede/internal/catalog"
	"sigede/internal/models"
	"sigede/internal/notifications"
	"sigede/internal/observability"
	"sigede/internal/presentation"
	"sigede/internal/repository"
	"sigede/internal/validation"
	"sigede/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxSubjectLen = 160
	maxNoteLen    = 1000
	maxPayloadLen = 2000
)

// StatusNotifier delivers status changes to submitters.
type StatusNotifier interface {
	PublishStatusChange(ctx context.Context, change notifications.StatusChange) error
}

// RequestService runs every human action on service requests. Callers pass
// the acting user explicitly; nothing is read from ambient session state.
type RequestService struct {
	requests repository.RequestRepository
	catalog  *catalog.Catalog
	notifier StatusNotifier
	now      func() time.Time
}

// NewRequestService returns a RequestService. notifier may be nil.
func NewRequestService(requests repository.RequestRepository, cat *catalog.Catalog, notifier StatusNotifier) *RequestService {
	if cat == nil {
		cat = catalog.Default()
	}
	return &RequestService{
		requests: requests,
		catalog:  cat,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock replaces time.Now for transitions.
func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

// SubmitInput is a citizen's new request.
type SubmitInput struct {
	Kind     models.RequestKind
	Category string
	Subject  string
	Payload  map[string]string
}

// ReviewFilter narrows the review queue.
type ReviewFilter struct {
	Status  string
	Kind    models.RequestKind
	AfterID string
	Limit   int
}

// SummaryRow is one status bucket on the review dashboard.
type SummaryRow struct {
	presentation.View
	Count int64 `json:"count"`
}

// Submit validates and stores a new request in pending_local_approval.
func (s *RequestService) Submit(ctx context.Context, actor workflow.Actor, in SubmitInput) (*models.ServiceRequest, error) {
	span, ctx := observability.StartServiceSpan(ctx, "RequestService", "Submit")
	defer span.End()

	status, err := workflow.Transition(workflow.Input{Event: models.EventSubmit, Actor: actor})
	if err != nil {
		observability.RecordTransitionError(string(models.EventSubmit), errorCode(err))
		return nil, err
	}

	in.Subject = strings.TrimSpace(in.Subject)
	switch {
	case in.Subject == "":
		return nil, models.NewValidationError("subject is required")
	case len(in.Subject) > maxSubjectLen:
		return nil, models.NewValidationError("subject too long (max 160 characters)")
	}

	payload := make(map[string]string, len(in.Payload))
	for k, v := range in.Payload {
		v = strings.TrimSpace(v)
		if len(v) > maxPayloadLen {
			return nil, models.NewValidationError("field " + k + " is too long")
		}
		payload[strings.TrimSpace(k)] = v
	}
	if err := s.catalog.Validate(in.Kind, in.Category, payload); err != nil {
		return nil, err
	}
	for _, field := range []string{"nik", "nik_almarhum"} {
		if v, ok := payload[field]; ok {
			if err := validation.ValidateNIK(v); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
		}
	}

	now := s.now().UTC()
	req := &models.ServiceRequest{
		SubmitterID:        actor.UserID,
		Kind:               in.Kind,
		Category:           in.Category,
		Subject:            in.Subject,
		Payload:            payload,
		Status:             status,
		LastStatusChangeAt: now,
		CreatedAt:          now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(attribute.String("request.id", req.ID))
	observability.RecordTransition("", string(status), string(models.EventSubmit))
	return req, nil
}

// Get returns a request visible to actor: its submitter or a reviewer.
func (s *RequestService) Get(ctx context.Context, actor workflow.Actor, id string) (*models.ServiceRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, req) {
		// Hide existence from other residents.
		return nil, models.NewNotFoundError("Request", id)
	}
	return req, nil
}

// ListMine returns the actor's own requests, newest first.
func (s *RequestService) ListMine(ctx context.Context, actor workflow.Actor, limit, offset int) ([]models.ServiceRequest, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("an authenticated user is required")
	}
	return s.requests.List(ctx, repository.RequestFilter{
		SubmitterID: actor.UserID,
		NewestFirst: true,
		Limit:       limit,
		Offset:      offset,
	})
}

// ListForReview returns the queue an official works from. Without a status
// filter kadus see pending_local_approval and admins see pending_admin_approval.
func (s *RequestService) ListForReview(ctx context.Context, actor workflow.Actor, f ReviewFilter) ([]models.ServiceRequest, error) {
	if !workflow.Can(actor.Role, workflow.ActionViewReviewQueue) {
		return nil, models.NewUnauthorizedError("your role may not view the review queue")
	}

	filter := repository.RequestFilter{
		Kind:             f.Kind,
		AfterID:          f.AfterID,
		Limit:            f.Limit,
		IncludeSubmitter: true,
	}
	switch {
	case f.Status != "":
		status, ok := workflow.ParseStatus(f.Status)
		if !ok {
			return nil, models.NewValidationError("unknown status " + f.Status)
		}
		filter.Statuses = []models.RequestStatus{status}
	case actor.Role == models.RoleAdmin:
		filter.Statuses = []models.RequestStatus{models.StatusPendingAdmin}
	default:
		filter.Statuses = []models.RequestStatus{models.StatusPendingLocal}
	}
	return s.requests.List(ctx, filter)
}

// LocalApprove forwards a request to the village administrator.
func (s *RequestService) LocalApprove(ctx context.Context, actor workflow.Actor, id, note string) (*models.ServiceRequest, error) {
	return s.apply(ctx, actor, id, models.EventLocalApprove, note)
}

// AdminApprove completes a request.
func (s *RequestService) AdminApprove(ctx context.Context, actor workflow.Actor, id, note string) (*models.ServiceRequest, error) {
	return s.apply(ctx, actor, id, models.EventAdminApprove, note)
}

// Reject closes a request. reason is mandatory.
func (s *RequestService) Reject(ctx context.Context, actor workflow.Actor, id, reason string) (*models.ServiceRequest, error) {
	return s.apply(ctx, actor, id, models.EventReject, reason)
}

func (s *RequestService) apply(ctx context.Context, actor workflow.Actor, id string, event models.RequestEvent, note string) (*models.ServiceRequest, error) {
	span, ctx := observability.StartServiceSpan(ctx, "RequestService", string(event))
	defer span.End()
	span.AddAttributes(attribute.String("request.id", id))

	note = strings.TrimSpace(note)
	if len(note) > maxNoteLen {
		return nil, models.NewValidationError("note too long (max 1000 characters)")
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Transition(workflow.Input{
		From:   req.Status,
		Event:  event,
		Actor:  actor,
		Reason: note,
	})
	if err != nil {
		observability.RecordTransitionError(string(event), errorCode(err))
		return nil, err
	}

	actorID := actor.UserID
	updated, err := s.requests.TransitionStatus(ctx, id, req.Status, next, repository.TransitionMeta{
		Event:       event,
		ActorUserID: &actorID,
		Note:        note,
		At:          s.now().UTC(),
	})
	if err != nil {
		span.SetError(err)
		observability.RecordTransitionError(string(event), errorCode(err))
		return nil, err
	}
	observability.RecordTransition(string(req.Status), string(next), string(event))

	s.notify(ctx, updated, req.Status, event)
	return updated, nil
}

func (s *RequestService) notify(ctx context.Context, req *models.ServiceRequest, from models.RequestStatus, event models.RequestEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishStatusChange(ctx, notifications.NewStatusChange(req, from, event)); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to publish status change",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
	}
}

// History returns the audit trail of a request visible to actor.
func (s *RequestService) History(ctx context.Context, actor workflow.Actor, id string) ([]models.RequestStatusHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.requests.History(ctx, id)
}

// Summary counts requests per status for reviewers, in approval order.
func (s *RequestService) Summary(ctx context.Context, actor workflow.Actor) ([]SummaryRow, error) {
	if !workflow.Can(actor.Role, workflow.ActionViewReviewQueue) {
		return nil, models.NewUnauthorizedError("your role may not view the review queue")
	}
	counts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	views := presentation.Catalog()
	out := make([]SummaryRow, 0, len(views))
	for _, v := range views {
		out = append(out, SummaryRow{View: v, Count: counts[v.Status]})
	}
	return out, nil
}

func canView(actor workflow.Actor, req *models.ServiceRequest) bool {
	if !actor.Authenticated() {
		return false
	}
	return req.SubmitterID == actor.UserID || workflow.Can(actor.Role, workflow.ActionViewReviewQueue)
}

func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
