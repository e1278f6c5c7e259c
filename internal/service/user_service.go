package service

import (
	"context"
	"strings"

	"sigede/internal/models"
	"sigede/internal/repository"
	"sigede/internal/validation"
	"sigede/internal/workflow"
)

type UserService struct {
	userRepo repository.UserRepository
}

type UpdateProfileInput struct {
	UserID      uint
	DisplayName *string
	Phone       *string
	Address     *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Actor loads the user behind a token and returns it as an explicit actor.
func (s *UserService) Actor(ctx context.Context, userID uint) (workflow.Actor, *models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return workflow.Actor{}, nil, err
	}
	return workflow.UserActor(user), user, nil
}

// UpdateProfile changes only the fields that are set.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const (
		maxDisplayNameLen = 100
		maxAddressLen     = 255
	)

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if len(name) > maxDisplayNameLen {
			return nil, models.NewValidationError("Display name too long (max 100 characters)")
		}
		user.DisplayName = name
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if err := validation.ValidatePhone(phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Phone = phone
	}
	if in.Address != nil {
		addr := strings.TrimSpace(*in.Address)
		if len(addr) > maxAddressLen {
			return nil, models.NewValidationError("Address too long (max 255 characters)")
		}
		user.Address = addr
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetRole assigns a portal role. Admins cannot change their own role.
func (s *UserService) SetRole(ctx context.Context, actor workflow.Actor, targetID uint, role models.UserRole) (*models.User, error) {
	if !workflow.Can(actor.Role, workflow.ActionManageUsers) {
		return nil, models.NewUnauthorizedError("only administrators may assign roles")
	}
	if actor.UserID == targetID {
		return nil, models.NewValidationError("You cannot change your own role")
	}
	return s.userRepo.SetRole(ctx, targetID, role)
}

// ListByRole lists users, optionally of one role, for administrators.
func (s *UserService) ListByRole(ctx context.Context, actor workflow.Actor, role models.UserRole, limit, offset int) ([]models.User, error) {
	if !workflow.Can(actor.Role, workflow.ActionManageUsers) {
		return nil, models.NewUnauthorizedError("only administrators may list users")
	}
	if role != "" && !role.Valid() {
		return nil, models.NewValidationError("unknown role " + string(role))
	}
	return s.userRepo.ListByRole(ctx, role, limit, offset)
}
