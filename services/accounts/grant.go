package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/bilim/services/otp"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const resetAudience = "password_reset"

type resetClaims struct {
	jwt.RegisteredClaims
}

// issueResetGrant runs inside the verification transaction of a password
// reset code.
func (s *Service) issueResetGrant(tx *gorm.DB, req *otp.VerificationRequest, outcome *otp.Outcome) error {
	if s.config.Auth.ResetSigningKey == "" {
		return otp.Reject(ErrPasswordResetDisabled)
	}

	now := s.clock()
	grant := &PasswordResetGrant{
		UserID:    req.SubjectID,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(s.config.OTP.ResetGrantTTL),
		CreatedAt: now,
	}
	if err := tx.Create(grant).Error; err != nil {
		return fmt.Errorf("failed to store reset grant: %w", err)
	}

	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        grant.JTI,
			Subject:   strconv.FormatUint(uint64(grant.UserID), 10),
			Issuer:    s.config.App.Name,
			Audience:  jwt.ClaimStrings{resetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(grant.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Auth.ResetSigningKey))
	if err != nil {
		return fmt.Errorf("failed to sign reset grant: %w", err)
	}

	outcome.ResetToken = token
	return nil
}

func (s *Service) parseResetToken(token string) (*resetClaims, error) {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.config.Auth.ResetSigningKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(resetAudience),
		jwt.WithIssuer(s.config.App.Name),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrResetGrantExpired
		}
		return nil, ErrResetGrantInvalid
	}
	return claims, nil
}

// CompletePasswordReset redeems a reset token, sets the new password and returns the
// id of the account it belongs to.
func (s *Service) CompletePasswordReset(ctx context.Context, token, password, passwordRepeat string) (uint, error) {
	if s.config.Auth.ResetSigningKey == "" {
		return 0, ErrPasswordResetDisabled
	}
	if err := validateStruct(passwordInput{Password: password, PasswordRepeat: passwordRepeat}); err != nil {
		return 0, err
	}

	claims, err := s.parseResetToken(token)
	if err != nil {
		s.logger.Warn("reset token rejected", zap.Error(err))
		return 0, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return 0, err
	}

	now := s.clock()
	var userID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grant PasswordResetGrant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("jti = ?", claims.ID).First(&grant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetGrantInvalid
		}
		if err != nil {
			return fmt.Errorf("failed to load reset grant: %w", err)
		}
		if strconv.FormatUint(uint64(grant.UserID), 10) != claims.Subject {
			return ErrResetGrantInvalid
		}
		if grant.Used {
			return ErrResetGrantUsed
		}
		if !now.Before(grant.ExpiresAt) {
			return ErrResetGrantExpired
		}

		result := tx.Model(&PasswordResetGrant{}).
			Where("id = ? AND used = ?", grant.ID, false).
			Updates(map[string]any{"used": true, "used_at": now})
		if result.Error != nil {
			return fmt.Errorf("failed to redeem reset grant: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrResetGrantUsed
		}

		result = tx.Model(&User{}).Where("id = ?", grant.UserID).Update("password_hash", hash)
		if result.Error != nil {
			return fmt.Errorf("failed to update password: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		userID = grant.UserID
		return nil
	})
	if err != nil {
		s.logger.Warn("password reset failed", zap.String("subject", claims.Subject), zap.Error(err))
		return 0, err
	}

	s.logger.Info("password reset completed", zap.String("subject", claims.Subject))
	return userID, nil
}

// CleanupResetGrants deletes grants that are used or expired.
func (s *Service) CleanupResetGrants(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("used = ? OR expires_at < ?", true, s.clock()).
		Delete(&PasswordResetGrant{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up reset grants: %w", result.Error)
	}
	return result.RowsAffected, nil
}
