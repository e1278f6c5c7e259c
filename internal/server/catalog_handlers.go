package server

import (
	"sigede/internal/catalog"
	"sigede/internal/models"
	"sigede/internal/presentation"

	"github.com/gofiber/fiber/v2"
)

// GetRequestStatuses handles GET /api/request-statuses
// @Summary Status badges
// @Description Display label and severity for every status, in approval order
// @Tags reference
// @Produce json
// @Success 200 {array} presentation.View
// @Router /request-statuses [get]
func (s *Server) GetRequestStatuses(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(presentation.Catalog())
}

// GetRequestCategories handles GET /api/request-categories?kind=
// @Summary Request categories
// @Tags reference
// @Produce json
// @Param kind query string false "layanan or pengaduan"
// @Success 200 {object} map[string][]catalog.Category
// @Failure 400 {object} models.ErrorResponse
// @Router /request-categories [get]
func (s *Server) GetRequestCategories(c *fiber.Ctx) error {
	cat := s.catalog
	if cat == nil {
		cat = catalog.Default()
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")

	kind := models.RequestKind(c.Query("kind"))
	if kind == "" {
		return c.JSON(cat.All())
	}
	list := cat.List(kind)
	if list == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("unknown kind "+string(kind)))
	}
	return c.JSON(fiber.Map{string(kind): list})
}
