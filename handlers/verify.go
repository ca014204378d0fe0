package handlers

import (
	"errors"
	"math"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/middleware/ratelimit"
	"github.com/tech-arch1tect/bilim/services/accounts"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/session"
	"go.uber.org/zap"
)

type failure struct {
	reason  string
	message string
}

var failures = []struct {
	err error
	failure
}{
	{otp.ErrNotFound, failure{"not_found", "No verification code is pending. Request a new code."}},
	{otp.ErrExpired, failure{"expired", "This code has expired. Request a new code."}},
	{otp.ErrInvalid, failure{"invalid", "The code you entered is incorrect."}},
	{otp.ErrAttemptsExceeded, failure{"attempts_exceeded", "Too many incorrect attempts. Request a new code."}},
	{accounts.ErrEmailTaken, failure{"email_taken", "This email address is already in use."}},
}

func verifyFailure(err error) (failure, bool) {
	for _, f := range failures {
		if errors.Is(err, f.err) {
			return f.failure, true
		}
	}
	return failure{}, false
}

var successes = map[otp.Action]struct {
	location string
	message  string
}{
	otp.ActionRegistration:  {"/account/me", "Your account is active."},
	otp.ActionEmailChange:   {"/account/me", "Your email address has been updated."},
	otp.ActionPasswordReset: {"/account/password-reset/confirm", "Choose a new password."},
}

// subject resolves whose code is being checked: the pending registration or
// reset held in the session, or the logged-in user for an email change.
func subject(c echo.Context, action otp.Action) uint {
	switch action {
	case otp.ActionRegistration:
		return session.GetUint(c, RegistrationSubjectKey)
	case otp.ActionEmailChange:
		return session.UserID(c)
	case otp.ActionPasswordReset:
		return session.GetUint(c, PasswordResetSubjectKey)
	}
	return 0
}

func parseAction(c echo.Context) (otp.Action, error) {
	action, err := otp.ParseAction(c.Param("action"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	}
	return action, nil
}

type verifyStatusResponse struct {
	Action  string                `json:"action" example:"registration"`
	Pending bool                  `json:"pending"`
	Error   string                `json:"error,omitempty" example:"invalid"`
	Flash   *session.FlashMessage `json:"flash,omitempty"`
}

// VerifyStatus backs the verification page: whether a code is outstanding and
// the outcome of the previous submission.
func (h *Handler) VerifyStatus(c echo.Context) error {
	action, err := parseAction(c)
	if err != nil {
		return err
	}

	resp := verifyStatusResponse{
		Action: actionSlug(action),
		Error:  c.QueryParam("error"),
		Flash:  session.PopFlash(c),
	}
	if subjectID := subject(c, action); subjectID > 0 {
		_, err := h.otp.Pending(c.Request().Context(), subjectID, action)
		resp.Pending = err == nil
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Verify(c echo.Context) error {
	action, err := parseAction(c)
	if err != nil {
		return err
	}

	subjectID := subject(c, action)
	if subjectID == 0 {
		return h.verifyFailed(c, action, otp.ErrNotFound)
	}

	outcome, err := h.otp.Verify(c.Request().Context(), subjectID, action, form(c, "code"))
	if err != nil {
		return h.verifyFailed(c, action, err)
	}

	switch action {
	case otp.ActionRegistration:
		session.Remove(c, RegistrationSubjectKey)
		if err := h.login(c, outcome.SubjectID); err != nil {
			return h.fail(err)
		}
	case otp.ActionPasswordReset:
		session.Put(c, ResetTokenKey, outcome.ResetToken)
	}

	success := successes[action]
	session.SetFlashSuccess(c, success.message)
	return c.Redirect(http.StatusSeeOther, success.location)
}

func (h *Handler) verifyFailed(c echo.Context, action otp.Action, err error) error {
	f, ok := verifyFailure(err)
	if !ok {
		return h.fail(err)
	}

	ratelimit.MarkFailure(c)
	session.SetFlashError(c, f.message)
	return c.Redirect(http.StatusSeeOther, verifyURL(action)+"?"+url.Values{"error": {f.reason}}.Encode())
}

func (h *Handler) Resend(c echo.Context) error {
	action, err := otp.ParseAction(c.Param("action"))
	if err != nil {
		return c.JSON(http.StatusNotFound, statusBody{Status: "not_found"})
	}

	subjectID := subject(c, action)
	if subjectID == 0 {
		return c.JSON(http.StatusNotFound, statusBody{Status: "not_found"})
	}

	ctx := c.Request().Context()
	_, err = h.otp.Resend(ctx, subjectID, action)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, statusBody{Status: "sent"})
	case errors.Is(err, otp.ErrNotFound):
		return c.JSON(http.StatusNotFound, statusBody{Status: "not_found"})
	case errors.Is(err, otp.ErrThrottled):
		wait, ttlErr := h.otp.RetryAfter(ctx, subjectID, action)
		if ttlErr != nil {
			h.logger.Warn("failed to read resend cooldown", zap.Uint("subject_id", subjectID), zap.Error(ttlErr))
		}
		return c.JSON(http.StatusTooManyRequests, statusBody{
			Status:     "throttled",
			RetryAfter: max(int(math.Ceil(wait.Seconds())), 1),
		})
	default:
		h.logger.Error("resend failed", zap.Uint("subject_id", subjectID), zap.Error(err))
		return h.fail(err)
	}
}
