package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"sigede/internal/models"
	"sigede/internal/service"
	"sigede/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userSvc().GetUserByID(c.UserContext(), userID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me. Omitted fields are left unchanged.
// @Summary Update profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{display_name=string,phone=string,address=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		DisplayName *string `json:"display_name"`
		Phone       *string `json:"phone"`
		Address     *string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userSvc().UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Address:     req.Address,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMyCapabilities handles GET /api/users/me/capabilities
// @Summary What the caller may do
// @Description Capability map for the caller's role, used by the portal to show or hide actions.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{role=string,capabilities=map[string]bool}
// @Router /users/me/capabilities [get]
func (s *Server) GetMyCapabilities(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	return c.JSON(fiber.Map{
		"role":         actor.Role,
		"capabilities": workflow.Capabilities(actor.Role),
	})
}

// ListUsers handles GET /api/admin/users?role=
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "warga, kadus or admin"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, 50)
	role := models.UserRole(strings.ToLower(strings.TrimSpace(c.Query("role"))))

	users, err := s.userSvc().ListByRole(ctx, actor, role, page.Limit, page.Offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Request timeout",
			})
		}
		return s.respondServiceError(c, err)
	}
	return c.JSON(users)
}

// SetUserRole handles PUT /api/admin/users/:id/role
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{role=string} true "warga, kadus or admin"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/role [put]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	actor, err := s.actorFrom(c)
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	role := models.UserRole(strings.ToLower(strings.TrimSpace(req.Role)))
	user, err := s.userSvc().SetRole(c.UserContext(), actor, targetID, role)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) userSvc() *service.UserService {
	if s.userService == nil {
		s.userService = service.NewUserService(s.userRepo)
	}
	return s.userService
}
