package accounts

import (
	"fmt"
	"strings"
	"unicode"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		s.logger.Debug("password rejected: insufficient length",
			zap.Int("length", len(password)),
			zap.Int("min_required", s.config.Auth.MinLength))
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, s.config.Auth.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}
	if len(missing) > 0 {
		s.logger.Debug("password rejected: missing requirements", zap.Strings("missing_requirements", missing))
		return fmt.Errorf("%w: must contain at least %s", ErrWeakPassword, strings.Join(missing, ", "))
	}

	if s.config.Auth.MinEntropyBits > 0 {
		if err := passwordvalidator.Validate(password, s.config.Auth.MinEntropyBits); err != nil {
			return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		}
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
