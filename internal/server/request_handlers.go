package server

import (
	"strings"

	"sigede/internal/models"
	"sigede/internal/presentation"
	"sigede/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RequestResponse is a service request with its display badge.
type RequestResponse struct {
	*models.ServiceRequest
	StatusView presentation.View `json:"status_view"`
}

// HistoryEntry is one audit row with the badge of the status it moved to.
type HistoryEntry struct {
	models.RequestStatusHistory
	ToView presentation.View `json:"to_view"`
}

func newRequestResponse(req *models.ServiceRequest) RequestResponse {
	return RequestResponse{
		ServiceRequest: req,
		StatusView:     presentation.Present(string(req.Status)),
	}
}

func newRequestList(reqs []models.ServiceRequest) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, newRequestResponse(&reqs[i]))
	}
	return out
}

// SubmitRequest handles POST /api/requests
// @Summary Submit a request
// @Description File a layanan document request or a pengaduan complaint
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{kind=string,category=string,subject=string,payload=object} true "New request"
// @Success 201 {object} RequestResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests [post]
func (s *Server) SubmitRequest(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}

	var body struct {
		Kind     string            `json:"kind"`
		Category string            `json:"category"`
		Subject  string            `json:"subject"`
		Payload  map[string]string `json:"payload"`
	}
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req, err := s.requestService.Submit(c.UserContext(), actor, service.SubmitInput{
		Kind:     models.RequestKind(strings.TrimSpace(body.Kind)),
		Category: strings.TrimSpace(body.Category),
		Subject:  body.Subject,
		Payload:  body.Payload,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newRequestResponse(req))
}

// GetMyRequests handles GET /api/requests/me
// @Summary My requests
// @Description Requests filed by the caller, newest first
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {array} RequestResponse
// @Router /requests/me [get]
func (s *Server) GetMyRequests(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	reqs, err := s.requestService.ListMine(c.UserContext(), actor, page.Limit, page.Offset)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(newRequestList(reqs))
}

// GetRequest handles GET /api/requests/:id
// @Summary Get a request
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} RequestResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests/{id} [get]
func (s *Server) GetRequest(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	id, err := s.parseRequestID(c)
	if err != nil {
		return nil
	}

	req, err := s.requestService.Get(c.UserContext(), actor, id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(newRequestResponse(req))
}

// GetRequestHistory handles GET /api/requests/:id/history
// @Summary Request status history
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {array} HistoryEntry
// @Failure 404 {object} models.ErrorResponse
// @Router /requests/{id}/history [get]
func (s *Server) GetRequestHistory(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	id, err := s.parseRequestID(c)
	if err != nil {
		return nil
	}

	rows, err := s.requestService.History(c.UserContext(), actor, id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryEntry{
			RequestStatusHistory: row,
			ToView:               presentation.Present(string(row.ToStatus)),
		})
	}
	return c.JSON(out)
}
