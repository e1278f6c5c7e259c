package server

import (
	"context"
	"errors"

	"sigede/internal/models"
	"sigede/internal/sweeper"
	"sigede/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// RunSweep handles POST /api/admin/sweeps. It runs one auto-approval pass
// synchronously and returns its summary.
// @Summary Run the auto-approval sweep now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} sweeper.Result
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/sweeps [post]
func (s *Server) RunSweep(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	if !workflow.Can(actor.Role, workflow.ActionRunSweep) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("your role may not run the sweeper"))
	}

	// A client disconnect must not abandon a run halfway through a page.
	ctx := context.WithoutCancel(c.UserContext())
	res, err := s.sweeper.RunOnce(ctx)
	switch {
	case errors.Is(err, sweeper.ErrSweepInProgress):
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "a sweep is already running",
			Code:  models.CodeConflict,
		})
	case errors.Is(err, sweeper.ErrSweepDisabled):
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "auto-approval is switched off",
			Code:  models.CodeConflict,
		})
	case err != nil:
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewPersistenceError(err))
	}

	return c.JSON(fiber.Map{
		"result":  res,
		"outcome": res.Outcome(),
	})
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
