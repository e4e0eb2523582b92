package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/letterboxd"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type UserService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, updates UserProfileUpdate) (*types.User, error)
	LinkLetterboxd(ctx context.Context, userID uuid.UUID, letterboxdUsername string) (*types.User, error)
	UnlinkLetterboxd(ctx context.Context, userID uuid.UUID) (*types.User, error)
	DeactivateUser(ctx context.Context, userID uuid.UUID) error
	ActivateUser(ctx context.Context, userID uuid.UUID) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// UserProfileUpdate carries the mutable profile fields; nil means leave
// unchanged.
type UserProfileUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	scraper  letterboxd.Client
}

func NewUserService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	scraper letterboxd.Client,
) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:       db,
		log:      serviceLog,
		userRepo: userRepo,
		scraper:  scraper,
	}
}

func (us *userService) requireUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	users, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apierr.NotFound("user %s not found", userID)
	}
	return users[0], nil
}

func (us *userService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return us.requireUser(ctx, userID)
}

func (us *userService) ListUsers(ctx context.Context, limit, offset int) ([]*types.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return us.userRepo.List(ctx, nil, limit, offset)
}

func (us *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, updates UserProfileUpdate) (*types.User, error) {
	if _, err := us.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if updates.Username != nil {
		username := strings.TrimSpace(*updates.Username)
		if username == "" {
			return nil, apierr.Validation("username cannot be empty")
		}
		taken, err := us.userRepo.UsernameExists(ctx, nil, username)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apierr.Validation("username is already taken")
		}
		fields["username"] = username
	}
	if updates.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*updates.Email))
		if email == "" {
			return nil, apierr.Validation("email cannot be empty")
		}
		taken, err := us.userRepo.EmailExists(ctx, nil, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apierr.Validation("email is already registered")
		}
		fields["email"] = email
	}
	if len(fields) == 0 {
		return us.requireUser(ctx, userID)
	}

	if err := us.userRepo.UpdateFields(ctx, nil, userID, fields); err != nil {
		return nil, err
	}
	return us.requireUser(ctx, userID)
}

// LinkLetterboxd attaches a Letterboxd handle and resets the sync state to
// PENDING so the next sweep imports the account. The handle is validated
// against the scraper when it is reachable.
func (us *userService) LinkLetterboxd(ctx context.Context, userID uuid.UUID, letterboxdUsername string) (*types.User, error) {
	handle := strings.TrimSpace(letterboxdUsername)
	if handle == "" {
		return nil, apierr.Validation("letterboxd username is required")
	}
	if _, err := us.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	if us.scraper != nil && us.scraper.Enabled() {
		if !us.scraper.ValidateUser(ctx, handle) {
			return nil, apierr.Validation("letterboxd user %q not found", handle)
		}
	}

	if err := us.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{
		"letterboxd_username": handle,
		"sync_status":         types.SyncPending,
		"last_sync_date":      nil,
	}); err != nil {
		return nil, err
	}
	us.log.Info("Linked Letterboxd account", "user_id", userID, "letterboxd_username", handle)
	return us.requireUser(ctx, userID)
}

func (us *userService) UnlinkLetterboxd(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	if _, err := us.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := us.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{
		"letterboxd_username": nil,
		"sync_status":         types.SyncPending,
		"last_sync_date":      nil,
	}); err != nil {
		return nil, err
	}
	return us.requireUser(ctx, userID)
}

func (us *userService) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := us.requireUser(ctx, userID); err != nil {
		return err
	}
	return us.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{
		"is_active": false,
	})
}

func (us *userService) ActivateUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := us.requireUser(ctx, userID); err != nil {
		return err
	}
	return us.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{
		"is_active": true,
	})
}

func (us *userService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := us.requireUser(ctx, userID); err != nil {
		return err
	}
	return us.userRepo.Delete(ctx, nil, userID)
}
