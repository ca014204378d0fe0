package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/bilim/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// Tracker keeps user_sessions in step with the session store. Revoking a
// session deletes it from the store, which logs the browser out on its next
// request.
type Tracker struct {
	db      *gorm.DB
	manager *Manager
	logger  *logging.Service
	now     func() time.Time
}

func NewTracker(db *gorm.DB, manager *Manager, logger *logging.Service) *Tracker {
	return &Tracker{
		db:      db,
		manager: manager,
		logger:  logger.Named("sessions"),
		now:     time.Now,
	}
}

func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) lifetime() time.Duration {
	if t.manager == nil || t.manager.Lifetime <= 0 {
		return 24 * time.Hour
	}
	return t.manager.Lifetime
}

func (t *Tracker) TrackSession(ctx context.Context, userID uint, token, ipAddress, userAgent string) error {
	if t == nil || token == "" {
		return nil
	}

	now := t.now().UTC()
	session := UserSession{
		UserID:    userID,
		Token:     token,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
		LastUsed:  now,
		ExpiresAt: now.Add(t.lifetime()),
	}
	if err := t.db.WithContext(ctx).Create(&session).Error; err != nil {
		return fmt.Errorf("failed to track session: %w", err)
	}
	return nil
}

// UpdateLastUsed stamps the session row of token, if there is one.
func (t *Tracker) UpdateLastUsed(ctx context.Context, token string) error {
	if t == nil || token == "" {
		return nil
	}
	return t.db.WithContext(ctx).Model(&UserSession{}).
		Where("token = ?", token).
		Update("last_used", t.now().UTC()).Error
}

// GetUserSessions lists the unexpired sessions of userID, most recently used
// first, marking the one that matches currentToken.
func (t *Tracker) GetUserSessions(ctx context.Context, userID uint, currentToken string) ([]UserSession, error) {
	var sessions []UserSession
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, t.now().UTC()).
		Order("last_used DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	for i := range sessions {
		sessions[i].Current = currentToken != "" && sessions[i].Token == currentToken
	}
	return sessions, nil
}

func (t *Tracker) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	var session UserSession
	err := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	return t.revoke(ctx, []UserSession{session})
}

// RevokeAllOtherSessions revokes every session of userID except currentToken.
// An empty currentToken revokes them all.
func (t *Tracker) RevokeAllOtherSessions(ctx context.Context, userID uint, currentToken string) error {
	if t == nil {
		return nil
	}

	var sessions []UserSession
	err := t.db.WithContext(ctx).Where("user_id = ? AND token <> ?", userID, currentToken).Find(&sessions).Error
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	return t.revoke(ctx, sessions)
}

func (t *Tracker) RevokeAll(ctx context.Context, userID uint) error {
	return t.RevokeAllOtherSessions(ctx, userID, "")
}

func (t *Tracker) revoke(ctx context.Context, sessions []UserSession) error {
	if len(sessions) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(sessions))
	for _, session := range sessions {
		if t.manager != nil && t.manager.Store != nil {
			if err := t.manager.Store.Delete(session.Token); err != nil {
				return fmt.Errorf("failed to delete stored session: %w", err)
			}
		}
		ids = append(ids, session.ID)
	}

	if err := t.db.WithContext(ctx).Delete(&UserSession{}, ids).Error; err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	t.logger.Info("sessions revoked", zap.Uint("user_id", sessions[0].UserID), zap.Int("count", len(ids)))
	return nil
}

// RemoveSessionByToken forgets the row of a session that has ended on its own,
// such as on logout.
func (t *Tracker) RemoveSessionByToken(ctx context.Context, token string) error {
	if t == nil || token == "" {
		return nil
	}
	return t.db.WithContext(ctx).Where("token = ?", token).Delete(&UserSession{}).Error
}

func (t *Tracker) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result := t.db.WithContext(ctx).Where("expires_at < ?", t.now().UTC()).Delete(&UserSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		t.logger.Info("expired sessions removed", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
