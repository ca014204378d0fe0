// Package handlers exposes the account and verification flows over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/services/accounts"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/session"
	"go.uber.org/zap"
)

// Session keys holding the subject of an unauthenticated verification flow.
const (
	RegistrationSubjectKey  = "verify:registration"
	PasswordResetSubjectKey = "verify:password_reset"
	ResetTokenKey           = "reset:token"
)

type Handler struct {
	accounts *accounts.Service
	otp      *otp.Service
	sessions *session.Tracker
	logger   *logging.Service
}

func New(accountService *accounts.Service, otpService *otp.Service, tracker *session.Tracker, logger *logging.Service) *Handler {
	return &Handler{
		accounts: accountService,
		otp:      otpService,
		sessions: tracker,
		logger:   logger.Named("handlers"),
	}
}

// login rotates the session token, binds it to userID and records it in the
// session list. The row of the replaced token is dropped.
func (h *Handler) login(c echo.Context, userID uint) error {
	ctx := c.Request().Context()
	previous := session.Token(c)

	if err := session.Login(c, userID); err != nil {
		return err
	}
	if err := h.sessions.RemoveSessionByToken(ctx, previous); err != nil {
		h.logger.Warn("failed to drop replaced session", zap.Error(err))
	}
	return h.sessions.TrackSession(ctx, userID, session.Token(c), c.RealIP(), c.Request().UserAgent())
}

type errorBody struct {
	Error   string `json:"error" example:"validation"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type statusBody struct {
	Status     string `json:"status" example:"sent"`
	RetryAfter int    `json:"retry_after,omitempty" doc:"Seconds until another code may be requested"`
	VerifyURL  string `json:"verify_url,omitempty"`
}

// fail maps a service error onto an HTTP error. Unknown errors become a
// generic 500 with the cause kept for the error log.
func (h *Handler) fail(err error) error {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, errorBody{Error: code, Message: "internal server error"}).SetInternal(err)
	}

	body := errorBody{Error: code, Message: err.Error()}
	var validationErr *accounts.ValidationError
	if errors.As(err, &validationErr) {
		body.Field = validationErr.Field
	}
	return echo.NewHTTPError(status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, accounts.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, "password_mismatch"
	case errors.Is(err, accounts.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "weak_password"
	case errors.Is(err, accounts.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, accounts.ErrSameEmail):
		return http.StatusUnprocessableEntity, "same_email"
	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, accounts.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive"
	case errors.Is(err, accounts.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, accounts.ErrPasswordResetDisabled):
		return http.StatusNotFound, "reset_disabled"
	case errors.Is(err, accounts.ErrResetGrantInvalid):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, accounts.ErrResetGrantExpired):
		return http.StatusBadRequest, "token_expired"
	case errors.Is(err, accounts.ErrResetGrantUsed):
		return http.StatusBadRequest, "token_used"
	case errors.Is(err, otp.ErrThrottled):
		return http.StatusTooManyRequests, "throttled"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

func device(c echo.Context) string {
	return otp.DescribeDevice(c.Request().UserAgent())
}

func form(c echo.Context, name string) string {
	return strings.TrimSpace(c.FormValue(name))
}

// actionSlug is the URL form of an action.
func actionSlug(action otp.Action) string {
	return strings.ReplaceAll(action.String(), "_", "-")
}

func verifyURL(action otp.Action) string {
	return "/account/verify/" + actionSlug(action)
}

func (h *Handler) logUnexpected(msg string, err error, fields ...zap.Field) {
	if status, _ := classify(err); status == http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}
