package server

import (
	"context"

	"sigede/internal/models"
	"sigede/internal/service"
	"sigede/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

type reviewAction func(ctx context.Context, actor workflow.Actor, id, note string) (*models.ServiceRequest, error)

// GetReviewQueue handles GET /api/review/requests
// @Summary Review queue
// @Description Requests awaiting the caller's decision. Kadus default to pending_local_approval, admins to pending_admin_approval.
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param kind query string false "layanan or pengaduan"
// @Param after query string false "Return ids after this one"
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} RequestResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /review/requests [get]
func (s *Server) GetReviewQueue(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	reqs, err := s.requestService.ListForReview(c.UserContext(), actor, service.ReviewFilter{
		Status:  c.Query("status"),
		Kind:    models.RequestKind(c.Query("kind")),
		AfterID: c.Query("after"),
		Limit:   page.Limit,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(newRequestList(reqs))
}

// GetReviewSummary handles GET /api/review/summary
// @Summary Counts per status
// @Tags review
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.SummaryRow
// @Failure 403 {object} models.ErrorResponse
// @Router /review/summary [get]
func (s *Server) GetReviewSummary(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	rows, err := s.requestService.Summary(c.UserContext(), actor)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(rows)
}

// LocalApproveRequest handles POST /api/review/requests/:id/local-approve
// @Summary Hamlet head approval
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{note=string} false "Optional note"
// @Success 200 {object} RequestResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /review/requests/{id}/local-approve [post]
func (s *Server) LocalApproveRequest(c *fiber.Ctx) error {
	return s.review(c, s.requestService.LocalApprove, "note")
}

// AdminApproveRequest handles POST /api/review/requests/:id/admin-approve
// @Summary Final approval
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{note=string} false "Optional note"
// @Success 200 {object} RequestResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /review/requests/{id}/admin-approve [post]
func (s *Server) AdminApproveRequest(c *fiber.Ctx) error {
	return s.review(c, s.requestService.AdminApprove, "note")
}

// RejectRequest handles POST /api/review/requests/:id/reject
// @Summary Reject a request
// @Description A reason is required.
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{reason=string} true "Rejection reason"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /review/requests/{id}/reject [post]
func (s *Server) RejectRequest(c *fiber.Ctx) error {
	return s.review(c, s.requestService.Reject, "reason")
}

func (s *Server) review(c *fiber.Ctx, action reviewAction, field string) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	id, err := s.parseRequestID(c)
	if err != nil {
		return nil
	}

	body := map[string]string{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	req, err := action(c.UserContext(), actor, id, body[field])
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(newRequestResponse(req))
}
