package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/throttle"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("no active verification request")
	ErrExpired          = errors.New("verification code expired")
	ErrInvalid          = errors.New("invalid verification code")
	ErrThrottled        = errors.New("verification code requested too soon")
	ErrAttemptsExceeded = errors.New("too many invalid verification attempts")
	ErrUnknownAction    = errors.New("unknown verification action")
	ErrNoHandler        = errors.New("no handler registered for action")
	ErrMissingRecipient = errors.New("verification recipient is required")
)

// Rejection marks an ActionHandler error as a refusal the caller expects,
// such as an address taken in the meantime. Verify logs it at info level.
type Rejection struct {
	Err error
}

func (r *Rejection) Error() string { return r.Err.Error() }

func (r *Rejection) Unwrap() error { return r.Err }

// Reject wraps err as a Rejection. errors.Is still matches err.
func Reject(err error) error {
	return &Rejection{Err: err}
}

// Notifier queues a message for asynchronous delivery.
type Notifier interface {
	Send(to, subject, message string) error
}

// ActionHandler applies the side effect of a successful verification. It runs
// inside the transaction that consumes the code and must only use tx.
type ActionHandler func(tx *gorm.DB, req *VerificationRequest, outcome *Outcome) error

type IssueRequest struct {
	SubjectID uint
	Action    Action
	Recipient string
	Payload   string
	// Device is a short description of the requesting client, see DescribeDevice.
	Device string
}

type Outcome struct {
	Action    Action
	SubjectID uint
	Recipient string
	Payload   string
	// ResetToken is set by the password reset handler.
	ResetToken string
}

type Service struct {
	db          *gorm.DB
	throttle    throttle.Store
	notifier    Notifier
	logger      *logging.Service
	codeTTL     time.Duration
	cooldown    time.Duration
	maxAttempts int

	mu       sync.RWMutex
	handlers map[Action]ActionHandler
	now      func() time.Time
	generate func() (string, error)
}

func NewService(cfg *config.OTPConfig, db *gorm.DB, store throttle.Store, notifier Notifier, logger *logging.Service) *Service {
	return &Service{
		db:          db,
		throttle:    store,
		notifier:    notifier,
		logger:      logger.Named("otp"),
		codeTTL:     cfg.CodeTTL,
		cooldown:    cfg.ResendCooldown,
		maxAttempts: cfg.MaxAttempts,
		handlers:    make(map[Action]ActionHandler),
		now:         time.Now,
		generate:    GenerateCode,
	}
}

func (s *Service) RegisterHandler(action Action, handler ActionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = handler
}

func (s *Service) SetNotifier(notifier Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) SetCodeGenerator(generate func() (string, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generate = generate
}

func (s *Service) CodeTTL() time.Duration {
	return s.codeTTL
}

func (s *Service) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().UTC()
}

// Issue replaces any existing request for the subject and action with a new
// code and queues it for delivery. The resend marker is set without being
// checked.
func (s *Service) Issue(ctx context.Context, in IssueRequest) (*VerificationRequest, error) {
	req, err := s.issue(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := s.throttle.Mark(ctx, throttle.Key(in.Action.String(), in.SubjectID), s.cooldown); err != nil {
		s.logger.Warn("failed to set resend marker", zap.Uint("subject_id", in.SubjectID), zap.Error(err))
	}

	s.notifyCode(req)
	return req, nil
}

// TryIssue issues a code only if no resend marker exists for the subject and
// action. The marker is released again when issuance fails.
func (s *Service) TryIssue(ctx context.Context, in IssueRequest) (*VerificationRequest, error) {
	if !in.Action.Valid() {
		return nil, ErrUnknownAction
	}

	key := throttle.Key(in.Action.String(), in.SubjectID)
	acquired, err := s.throttle.Acquire(ctx, key, s.cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to check resend marker: %w", err)
	}
	if !acquired {
		s.logger.Info("verification code throttled",
			zap.Uint("subject_id", in.SubjectID),
			zap.String("action", in.Action.String()))
		return nil, ErrThrottled
	}

	req, err := s.issue(ctx, in)
	if err != nil {
		if relErr := s.throttle.Release(ctx, key); relErr != nil {
			s.logger.Warn("failed to release resend marker", zap.Uint("subject_id", in.SubjectID), zap.Error(relErr))
		}
		return nil, err
	}

	s.notifyCode(req)
	return req, nil
}

// Resend issues a fresh code to the recipient of the existing request,
// subject to the resend cooldown.
func (s *Service) Resend(ctx context.Context, subjectID uint, action Action) (*VerificationRequest, error) {
	if !action.Valid() {
		return nil, ErrUnknownAction
	}

	var existing VerificationRequest
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND action = ?", subjectID, action).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification request: %w", err)
	}

	return s.TryIssue(ctx, IssueRequest{
		SubjectID: subjectID,
		Action:    action,
		Recipient: existing.Recipient,
		Payload:   existing.Payload,
		Device:    existing.Device,
	})
}

// RetryAfter reports how long until a resend is allowed.
func (s *Service) RetryAfter(ctx context.Context, subjectID uint, action Action) (time.Duration, error) {
	return s.throttle.TTL(ctx, throttle.Key(action.String(), subjectID))
}

func (s *Service) issue(ctx context.Context, in IssueRequest) (*VerificationRequest, error) {
	if !in.Action.Valid() {
		return nil, ErrUnknownAction
	}
	if in.Recipient == "" {
		return nil, ErrMissingRecipient
	}

	s.mu.RLock()
	generate := s.generate
	s.mu.RUnlock()

	code, err := generate()
	if err != nil {
		return nil, err
	}

	req := &VerificationRequest{
		SubjectID: in.SubjectID,
		Action:    in.Action,
		Code:      code,
		Recipient: in.Recipient,
		Payload:   in.Payload,
		Device:    in.Device,
		CreatedAt: s.clock(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ? AND action = ?", in.SubjectID, in.Action).
			Delete(&VerificationRequest{}).Error; err != nil {
			return fmt.Errorf("failed to delete previous request: %w", err)
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to store verification request: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to issue verification code",
			zap.Uint("subject_id", in.SubjectID),
			zap.String("action", in.Action.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("verification code issued",
		zap.Uint("subject_id", in.SubjectID),
		zap.String("action", in.Action.String()))
	return req, nil
}

// Verify checks a submitted code and, on a match, consumes the request and
// runs the action handler in one transaction. A wrong code is recorded
// against the request even though ErrInvalid is returned.
func (s *Service) Verify(ctx context.Context, subjectID uint, action Action, code string) (*Outcome, error) {
	if !action.Valid() {
		return nil, ErrUnknownAction
	}

	s.mu.RLock()
	handler, ok := s.handlers[action]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoHandler
	}

	now := s.clock()
	var outcome *Outcome
	var verifyErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req VerificationRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject_id = ? AND action = ? AND consumed = ?", subjectID, action, false).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			verifyErr = ErrNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load verification request: %w", err)
		}

		if !now.Before(req.ExpiresAt(s.codeTTL)) {
			verifyErr = ErrExpired
			return nil
		}

		if s.maxAttempts > 0 && req.Attempts >= s.maxAttempts {
			verifyErr = ErrAttemptsExceeded
			return nil
		}

		if subtle.ConstantTimeCompare([]byte(req.Code), []byte(code)) != 1 {
			if err := tx.Model(&VerificationRequest{}).Where("id = ?", req.ID).
				UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
				return fmt.Errorf("failed to record attempt: %w", err)
			}
			verifyErr = ErrInvalid
			return nil
		}

		result := tx.Model(&VerificationRequest{}).
			Where("id = ? AND consumed = ?", req.ID, false).
			Updates(map[string]any{"consumed": true, "consumed_at": now, "updated_at": now})
		if result.Error != nil {
			return fmt.Errorf("failed to consume verification request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			verifyErr = ErrNotFound
			return nil
		}

		req.Consumed = true
		req.ConsumedAt = &now
		out := &Outcome{
			Action:    req.Action,
			SubjectID: req.SubjectID,
			Recipient: req.Recipient,
			Payload:   req.Payload,
		}
		if err := handler(tx, &req, out); err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		var rejection *Rejection
		if errors.As(err, &rejection) {
			s.logger.Info("verification rejected",
				zap.Uint("subject_id", subjectID),
				zap.String("action", action.String()),
				zap.String("reason", rejection.Err.Error()))
			return nil, err
		}
		s.logger.Error("verification failed",
			zap.Uint("subject_id", subjectID),
			zap.String("action", action.String()),
			zap.Error(err))
		return nil, err
	}

	if verifyErr != nil {
		s.logger.Info("verification rejected",
			zap.Uint("subject_id", subjectID),
			zap.String("action", action.String()),
			zap.String("reason", verifyErr.Error()))
		return nil, verifyErr
	}

	s.logger.Info("verification succeeded",
		zap.Uint("subject_id", subjectID),
		zap.String("action", action.String()))
	s.notifyConfirmation(outcome)
	return outcome, nil
}

// Pending returns the active, unconsumed request for the subject and action.
func (s *Service) Pending(ctx context.Context, subjectID uint, action Action) (*VerificationRequest, error) {
	var req VerificationRequest
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND action = ? AND consumed = ?", subjectID, action, false).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification request: %w", err)
	}
	return &req, nil
}

// CleanupConsumed deletes consumed requests and abandoned codes created more
// than olderThan ago. It only reclaims storage; expiry is decided at verify.
func (s *Service) CleanupConsumed(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < s.codeTTL {
		olderThan = s.codeTTL
	}
	cutoff := s.clock().Add(-olderThan)

	result := s.db.WithContext(ctx).
		Where("(consumed = ? AND consumed_at < ?) OR (consumed = ? AND created_at < ?)", true, cutoff, false, cutoff).
		Delete(&VerificationRequest{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up verification requests: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("verification requests cleaned up", zap.Int64("deleted", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// DeleteForSubject removes every request of a subject. tx may be a transaction.
func DeleteForSubject(tx *gorm.DB, subjectID uint) error {
	return tx.Where("subject_id = ?", subjectID).Delete(&VerificationRequest{}).Error
}

func (s *Service) sender() Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

func (s *Service) notifyCode(req *VerificationRequest) {
	notifier := s.sender()
	if notifier == nil {
		return
	}

	msg := messages[req.Action]
	body := fmt.Sprintf(msg.codeBody, req.Code, formatTTL(s.codeTTL))
	if req.Device != "" {
		body += fmt.Sprintf("\n\nRequested from %s.", req.Device)
	}

	if err := notifier.Send(req.Recipient, msg.codeSubject, body); err != nil {
		s.logger.Warn("failed to queue verification code",
			zap.Uint("subject_id", req.SubjectID),
			zap.String("action", req.Action.String()),
			zap.Error(err))
	}
}

func (s *Service) notifyConfirmation(outcome *Outcome) {
	notifier := s.sender()
	if notifier == nil {
		return
	}

	msg := messages[outcome.Action]
	to := outcome.Recipient
	if err := notifier.Send(to, msg.confirmSubject, msg.confirmBody); err != nil {
		s.logger.Warn("failed to queue confirmation",
			zap.Uint("subject_id", outcome.SubjectID),
			zap.String("action", outcome.Action.String()),
			zap.Error(err))
	}
}
