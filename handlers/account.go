package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/services/accounts"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/session"
	"go.uber.org/zap"
)

type profileResponse struct {
	User         *accounts.User `json:"user"`
	PendingEmail string         `json:"pending_email,omitempty" doc:"Address awaiting confirmation"`
}

func (h *Handler) Register(c echo.Context) error {
	user, err := h.accounts.Register(c.Request().Context(), accounts.RegisterInput{
		Email:          form(c, "email"),
		Password:       c.FormValue("password"),
		PasswordRepeat: c.FormValue("password_repeat"),
		FirstName:      form(c, "first_name"),
		LastName:       form(c, "last_name"),
		Bio:            form(c, "bio"),
		Device:         device(c),
	})
	// A pending registrant inside the resend cooldown keeps the code sent earlier.
	if err != nil && !(errors.Is(err, otp.ErrThrottled) && user != nil) {
		h.logUnexpected("registration failed", err)
		return h.fail(err)
	}

	session.PutUint(c, RegistrationSubjectKey, user.ID)
	return c.JSON(http.StatusCreated, statusBody{Status: "sent", VerifyURL: verifyURL(otp.ActionRegistration)})
}

func (h *Handler) Login(c echo.Context) error {
	user, err := h.accounts.Authenticate(c.Request().Context(), form(c, "email"), c.FormValue("password"))
	if err != nil {
		h.logUnexpected("login failed", err)
		return h.fail(err)
	}

	if err := h.login(c, user.ID); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, profileResponse{User: user})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.sessions.RemoveSessionByToken(c.Request().Context(), session.Token(c)); err != nil {
		h.logger.Warn("failed to drop ended session", zap.Error(err))
	}
	if err := session.Logout(c); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.accounts.GetUser(ctx, session.UserID(c))
	if err != nil {
		return h.fail(err)
	}

	resp := profileResponse{User: user}
	pending, err := h.otp.Pending(ctx, user.ID, otp.ActionEmailChange)
	switch {
	case err == nil:
		resp.PendingEmail = pending.Payload
	case !errors.Is(err, otp.ErrNotFound):
		h.logger.Warn("failed to load pending email change", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	user, err := h.accounts.UpdateProfile(c.Request().Context(), session.UserID(c), accounts.ProfileInput{
		FirstName: form(c, "first_name"),
		LastName:  form(c, "last_name"),
		Bio:       form(c, "bio"),
	})
	if err != nil {
		h.logUnexpected("profile update failed", err)
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, profileResponse{User: user})
}

// ChangePassword also signs out every other session of the account.
func (h *Handler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	userID := session.UserID(c)
	err := h.accounts.ChangePassword(ctx, userID,
		c.FormValue("current_password"), c.FormValue("password"), c.FormValue("password_repeat"))
	if err != nil {
		h.logUnexpected("password change failed", err)
		return h.fail(err)
	}
	if err := h.sessions.RevokeAllOtherSessions(ctx, userID, session.Token(c)); err != nil {
		h.logger.Error("failed to revoke sessions after password change", zap.Uint("user_id", userID), zap.Error(err))
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, statusBody{Status: "updated"})
}

func (h *Handler) ChangeEmail(c echo.Context) error {
	err := h.accounts.RequestEmailChange(c.Request().Context(), session.UserID(c), form(c, "email"), device(c))
	if err != nil {
		h.logUnexpected("email change request failed", err)
		return h.fail(err)
	}
	return c.JSON(http.StatusAccepted, statusBody{Status: "sent", VerifyURL: verifyURL(otp.ActionEmailChange)})
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	userID := session.UserID(c)
	if err := h.accounts.DeleteAccount(ctx, userID); err != nil {
		h.logUnexpected("account deletion failed", err)
		return h.fail(err)
	}
	if err := h.sessions.RevokeAll(ctx, userID); err != nil {
		h.logger.Error("failed to revoke sessions of deleted account", zap.Uint("user_id", userID), zap.Error(err))
		return h.fail(err)
	}
	if err := session.Logout(c); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PasswordReset answers the same way whether or not the address belongs to an
// account, including when a code was sent too recently.
func (h *Handler) PasswordReset(c echo.Context) error {
	userID, err := h.accounts.RequestPasswordReset(c.Request().Context(), form(c, "email"), device(c))
	if err != nil && !errors.Is(err, otp.ErrThrottled) {
		h.logUnexpected("password reset request failed", err)
		return h.fail(err)
	}

	if userID > 0 {
		session.PutUint(c, PasswordResetSubjectKey, userID)
	}
	return c.JSON(http.StatusAccepted, statusBody{Status: "sent", VerifyURL: verifyURL(otp.ActionPasswordReset)})
}

type resetReadyResponse struct {
	Ready bool                  `json:"ready" doc:"A verified reset grant is held by this session"`
	Flash *session.FlashMessage `json:"flash,omitempty"`
}

func (h *Handler) PasswordResetReady(c echo.Context) error {
	token, _ := session.Get(c, ResetTokenKey).(string)
	return c.JSON(http.StatusOK, resetReadyResponse{Ready: token != "", Flash: session.PopFlash(c)})
}

// PasswordResetConfirm redeems the reset grant from the form, or the one the
// verification step stored in the session. Every session of the account is
// signed out afterwards.
func (h *Handler) PasswordResetConfirm(c echo.Context) error {
	ctx := c.Request().Context()
	token := form(c, "token")
	if token == "" {
		token, _ = session.Get(c, ResetTokenKey).(string)
	}

	userID, err := h.accounts.CompletePasswordReset(ctx, token,
		c.FormValue("password"), c.FormValue("password_repeat"))
	if err != nil {
		h.logUnexpected("password reset failed", err)
		return h.fail(err)
	}
	if err := h.sessions.RevokeAllOtherSessions(ctx, userID, session.Token(c)); err != nil {
		h.logger.Error("failed to revoke sessions after password reset", zap.Uint("user_id", userID), zap.Error(err))
		return h.fail(err)
	}

	session.Remove(c, ResetTokenKey)
	session.Remove(c, PasswordResetSubjectKey)
	return c.JSON(http.StatusOK, statusBody{Status: "updated"})
}

type sessionItem struct {
	ID        uint      `json:"id"`
	Device    string    `json:"device" example:"Chrome on Windows"`
	IPAddress string    `json:"ip_address"`
	Current   bool      `json:"current" doc:"The session making this request"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionsResponse struct {
	Sessions []sessionItem `json:"sessions"`
}

func (h *Handler) Sessions(c echo.Context) error {
	ctx := c.Request().Context()
	token := session.Token(c)
	if err := h.sessions.UpdateLastUsed(ctx, token); err != nil {
		h.logger.Warn("failed to stamp session", zap.Error(err))
	}

	sessions, err := h.sessions.GetUserSessions(ctx, session.UserID(c), token)
	if err != nil {
		return h.fail(err)
	}

	resp := sessionsResponse{Sessions: make([]sessionItem, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionItem{
			ID:        s.ID,
			Device:    otp.DescribeDevice(s.UserAgent),
			IPAddress: s.IPAddress,
			Current:   s.Current,
			CreatedAt: s.CreatedAt,
			LastUsed:  s.LastUsed,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// RevokeSession signs out one session of the account. Revoking the current
// session is a logout.
func (h *Handler) RevokeSession(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return h.fail(session.ErrSessionNotFound)
	}

	ctx := c.Request().Context()
	userID := session.UserID(c)
	sessions, err := h.sessions.GetUserSessions(ctx, userID, session.Token(c))
	if err != nil {
		return h.fail(err)
	}
	for _, s := range sessions {
		if s.ID == uint(id) && s.Current {
			return h.Logout(c)
		}
	}

	if err := h.sessions.RevokeSession(ctx, userID, uint(id)); err != nil {
		h.logUnexpected("session revocation failed", err)
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeOtherSessions(c echo.Context) error {
	if err := h.sessions.RevokeAllOtherSessions(c.Request().Context(), session.UserID(c), session.Token(c)); err != nil {
		h.logUnexpected("session revocation failed", err)
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
