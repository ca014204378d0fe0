package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/otp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrWeakPassword          = errors.New("password does not meet requirements")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is not active")
	ErrEmailTaken            = errors.New("email address is already in use")
	ErrSameEmail             = errors.New("new email address matches the current one")
	ErrUserNotFound          = errors.New("user not found")
	ErrPasswordResetDisabled = errors.New("password reset is disabled")
	ErrResetGrantInvalid     = errors.New("invalid password reset token")
	ErrResetGrantExpired     = errors.New("password reset token has expired")
	ErrResetGrantUsed        = errors.New("password reset token has already been used")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	otp    *otp.Service
	logger *logging.Service

	mu  sync.RWMutex
	now func() time.Time
}

// NewService wires the account side effects into the verification service.
func NewService(cfg *config.Config, db *gorm.DB, verifier *otp.Service, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}

	s := &Service{
		config: cfg,
		db:     db,
		otp:    verifier,
		logger: logger.Named("accounts"),
		now:    time.Now,
	}

	verifier.RegisterHandler(otp.ActionRegistration, s.activateAccount)
	verifier.RegisterHandler(otp.ActionEmailChange, s.applyEmailChange)
	verifier.RegisterHandler(otp.ActionPasswordReset, s.issueResetGrant)

	return s
}

func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().UTC()
}

// Register creates an inactive account and sends its activation code.
// Registering the email of a pending account with its password sends a fresh
// code, subject to the resend cooldown; the stored account is not modified.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", in.Email).First(&existing).Error
	switch {
	case err == nil && existing.IsActive:
		return nil, ErrEmailTaken
	case err == nil:
		return s.resumeRegistration(ctx, &existing, in)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Bio:          in.Bio,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logger.Error("failed to create account", zap.Error(err))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if _, err := s.otp.Issue(ctx, otp.IssueRequest{
		SubjectID: user.ID,
		Action:    otp.ActionRegistration,
		Recipient: user.Email,
		Device:    in.Device,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.Uint("user_id", user.ID))
	return &user, nil
}

// resumeRegistration re-sends the activation code of a pending account. A
// registrant who does not know the stored password gets ErrEmailTaken, so a
// pending account cannot be taken over. On ErrThrottled the user is returned
// as well: the code sent earlier is still the one to enter.
func (s *Service) resumeRegistration(ctx context.Context, user *User, in RegisterInput) (*User, error) {
	if err := s.VerifyPassword(user.PasswordHash, in.Password); err != nil {
		s.logger.Info("registration rejected for pending account", zap.Uint("user_id", user.ID))
		return nil, ErrEmailTaken
	}

	_, err := s.otp.TryIssue(ctx, otp.IssueRequest{
		SubjectID: user.ID,
		Action:    otp.ActionRegistration,
		Recipient: user.Email,
		Device:    in.Device,
	})
	switch {
	case errors.Is(err, otp.ErrThrottled):
		return user, err
	case err != nil:
		return nil, err
	}

	s.logger.Info("activation code re-sent", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", zap.Uint("user_id", user.ID))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.clock()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		s.logger.Warn("failed to record login time", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	s.logger.Info("user logged in", zap.Uint("user_id", user.ID))
	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// RequestEmailChange sends a code to the new address. The address is only
// applied once the code is verified. Requests share the resend cooldown, so
// repeated calls within it return otp.ErrThrottled.
func (s *Service) RequestEmailChange(ctx context.Context, userID uint, newEmail, device string) error {
	newEmail = normalizeEmail(newEmail)
	if err := validateStruct(emailInput{Email: newEmail}); err != nil {
		return err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == newEmail {
		return ErrSameEmail
	}

	taken, err := s.emailTaken(s.db.WithContext(ctx), newEmail, userID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	_, err = s.otp.TryIssue(ctx, otp.IssueRequest{
		SubjectID: userID,
		Action:    otp.ActionEmailChange,
		Recipient: newEmail,
		Payload:   newEmail,
		Device:    device,
	})
	return err
}

// RequestPasswordReset sends a reset code if the email belongs to an active
// account. Unknown addresses are ignored and return a zero id.
func (s *Service) RequestPasswordReset(ctx context.Context, email, device string) (uint, error) {
	if s.config.Auth.ResetSigningKey == "" {
		return 0, ErrPasswordResetDisabled
	}

	email = normalizeEmail(email)
	if err := validateStruct(emailInput{Email: email}); err != nil {
		return 0, err
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Info("password reset requested for unknown address")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load user: %w", err)
	}

	if _, err := s.otp.TryIssue(ctx, otp.IssueRequest{
		SubjectID: user.ID,
		Action:    otp.ActionPasswordReset,
		Recipient: user.Email,
		Device:    device,
	}); err != nil {
		return user.ID, err
	}
	return user.ID, nil
}

// UpdateProfile applies the non-empty fields of in.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.FirstName != "" {
		updates["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		updates["last_name"] = in.LastName
	}
	if in.Bio != "" {
		updates["bio"] = in.Bio
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update profile: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}

	return s.GetUser(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, current, password, passwordRepeat string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.VerifyPassword(user.PasswordHash, current); err != nil {
		return err
	}
	if err := validateStruct(passwordInput{Password: password, PasswordRepeat: passwordRepeat}); err != nil {
		return err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("password changed", zap.Uint("user_id", userID))
	return nil
}

// DeleteAccount removes the user with its pending codes and reset grants.
func (s *Service) DeleteAccount(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := otp.DeleteForSubject(tx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&PasswordResetGrant{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&User{}, userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Info("account deleted", zap.Uint("user_id", userID))
	return nil
}

// EnsureSuperuser creates an active staff superuser unless the email is
// already registered. It reports whether a user was created.
func (s *Service) EnsureSuperuser(ctx context.Context, email, password string) (*User, bool, error) {
	email = normalizeEmail(email)
	if err := validateStruct(emailInput{Email: email}); err != nil {
		return nil, false, err
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	now := s.clock()
	user := &User{
		Email:           email,
		PasswordHash:    hash,
		IsActive:        true,
		IsStaff:         true,
		IsSuperuser:     true,
		EmailVerifiedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create superuser: %w", err)
	}

	s.logger.Info("superuser created", zap.Uint("user_id", user.ID))
	return user, true, nil
}

func (s *Service) emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	if err := tx.Model(&User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (s *Service) activateAccount(tx *gorm.DB, req *otp.VerificationRequest, outcome *otp.Outcome) error {
	result := tx.Model(&User{}).Where("id = ?", req.SubjectID).
		Updates(map[string]any{"is_active": true, "email_verified_at": s.clock()})
	if result.Error != nil {
		return fmt.Errorf("failed to activate account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return otp.Reject(ErrUserNotFound)
	}
	return nil
}

func (s *Service) applyEmailChange(tx *gorm.DB, req *otp.VerificationRequest, outcome *otp.Outcome) error {
	taken, err := s.emailTaken(tx, req.Payload, req.SubjectID)
	if err != nil {
		return err
	}
	if taken {
		return otp.Reject(ErrEmailTaken)
	}

	result := tx.Model(&User{}).Where("id = ?", req.SubjectID).
		Updates(map[string]any{"email": req.Payload, "email_verified_at": s.clock()})
	if result.Error != nil {
		return fmt.Errorf("failed to change email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return otp.Reject(ErrUserNotFound)
	}
	return nil
}
