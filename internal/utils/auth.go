package utils

import (
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/types"
)

const minPasswordLength = 8

func NormalizeUserFields(user *types.User) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Username = strings.TrimSpace(user.Username)
}

func ValidateRegistration(user *types.User) error {
	if user.Username == "" {
		return apierr.Validation("username is required")
	}
	if user.Email == "" {
		return apierr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return apierr.Validation("invalid email address")
	}
	if len(user.Password) < minPasswordLength {
		return apierr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func HashPassword(user *types.User) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	return nil
}

func CheckPassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
