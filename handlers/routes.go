package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/apidoc"
	"github.com/tech-arch1tect/bilim/session"
)

// Mount registers the account routes on e. limiter guards the endpoints that
// accept guesses: login, code verification and reset requests.
func (h *Handler) Mount(e *echo.Echo, limiter echo.MiddlewareFunc, doc *apidoc.Doc) {
	account := e.Group("/account")
	auth := session.RequireAuth()

	account.POST("/register", h.Register)
	account.POST("/login", h.Login, limiter)
	account.POST("/logout", h.Logout)

	account.GET("/me", h.Me, auth)
	account.POST("/profile", h.UpdateProfile, auth)
	account.POST("/password", h.ChangePassword, auth)
	account.POST("/email", h.ChangeEmail, auth)
	account.POST("/delete", h.DeleteAccount, auth)
	account.GET("/sessions", h.Sessions, auth)
	account.POST("/sessions/revoke-others", h.RevokeOtherSessions, auth)
	account.POST("/sessions/:id/revoke", h.RevokeSession, auth)

	account.POST("/password-reset", h.PasswordReset, limiter)
	account.GET("/password-reset/confirm", h.PasswordResetReady)
	account.POST("/password-reset/confirm", h.PasswordResetConfirm, limiter)

	account.GET("/verify/:action", h.VerifyStatus)
	account.POST("/verify/:action", h.Verify, limiter)
	account.POST("/verify/:action/resend", h.Resend)

	if doc != nil {
		doc.Register(e)
	}
}

var (
	emailField    = apidoc.FormField{Name: "email", Required: true, Format: "email"}
	passwordField = apidoc.FormField{Name: "password", Required: true, Format: "password"}
	repeatField   = apidoc.FormField{Name: "password_repeat", Required: true, Format: "password"}
	actionValues  = []string{"registration", "email-change", "password-reset"}
)

// NewDoc describes the routes registered by Mount.
func NewDoc(title, version, baseURL, cookieName string) *apidoc.Doc {
	doc := apidoc.New(title, version).
		Description("Account registration, login and email code verification.").
		Server(baseURL, "").
		Tag("account", "Account management").
		Tag("verification", "Email code verification").
		CookieAuth("session", cookieName, "Session cookie set by login or a completed registration")

	doc.Route(http.MethodPost, "/account/register").
		Summary("Create an inactive account and email an activation code").
		Tags("account").
		Form(emailField, passwordField, repeatField,
			apidoc.FormField{Name: "first_name"}, apidoc.FormField{Name: "last_name"}, apidoc.FormField{Name: "bio"}).
		Response(http.StatusCreated, statusBody{}, "Activation code sent").
		Response(http.StatusConflict, errorBody{}, "Email belongs to an active account").
		Response(http.StatusUnprocessableEntity, errorBody{}, "Invalid input").
		Build()

	doc.Route(http.MethodPost, "/account/login").
		Summary("Start a session").
		Tags("account").
		Form(emailField, passwordField).
		Response(http.StatusOK, profileResponse{}, "Logged in").
		Response(http.StatusUnauthorized, errorBody{}, "Wrong email or password").
		Response(http.StatusForbidden, errorBody{}, "Account not yet activated").
		Response(http.StatusTooManyRequests, errorBody{}, "Too many failed attempts").
		Build()

	doc.Route(http.MethodPost, "/account/logout").
		Summary("End the session").
		Tags("account").
		Response(http.StatusNoContent, nil, "Logged out").
		Build()

	doc.Route(http.MethodGet, "/account/me").
		Summary("Current account").
		Tags("account").
		Security("session").
		Response(http.StatusOK, profileResponse{}, "Account details").
		Response(http.StatusUnauthorized, nil, "Not logged in").
		Build()

	doc.Route(http.MethodPost, "/account/profile").
		Summary("Update profile fields; empty fields are left unchanged").
		Tags("account").
		Security("session").
		Form(apidoc.FormField{Name: "first_name"}, apidoc.FormField{Name: "last_name"}, apidoc.FormField{Name: "bio"}).
		Response(http.StatusOK, profileResponse{}, "Updated account").
		Build()

	doc.Route(http.MethodPost, "/account/password").
		Summary("Change password").
		Description("Every other session of the account is signed out.").
		Tags("account").
		Security("session").
		Form(apidoc.FormField{Name: "current_password", Required: true, Format: "password"}, passwordField, repeatField).
		Response(http.StatusOK, statusBody{}, "Password changed").
		Response(http.StatusUnauthorized, errorBody{}, "Current password is wrong").
		Build()

	doc.Route(http.MethodPost, "/account/email").
		Summary("Send a code to a new email address").
		Tags("account", "verification").
		Security("session").
		Form(emailField).
		Response(http.StatusAccepted, statusBody{}, "Code sent to the new address").
		Response(http.StatusConflict, errorBody{}, "Address already in use").
		Response(http.StatusTooManyRequests, errorBody{}, "A code was sent too recently").
		Build()

	doc.Route(http.MethodPost, "/account/delete").
		Summary("Delete the account").
		Tags("account").
		Security("session").
		Response(http.StatusNoContent, nil, "Account deleted").
		Build()

	doc.Route(http.MethodGet, "/account/sessions").
		Summary("Signed-in sessions of the account").
		Tags("account").
		Security("session").
		Response(http.StatusOK, sessionsResponse{}, "Active sessions").
		Build()

	doc.Route(http.MethodPost, "/account/sessions/:id/revoke").
		Summary("Sign out one session").
		Tags("account").
		Security("session").
		PathParam("id", "Session id").
		Response(http.StatusNoContent, nil, "Session signed out").
		Response(http.StatusNotFound, errorBody{}, "No such session").
		Build()

	doc.Route(http.MethodPost, "/account/sessions/revoke-others").
		Summary("Sign out every other session").
		Tags("account").
		Security("session").
		Response(http.StatusNoContent, nil, "Other sessions signed out").
		Build()

	doc.Route(http.MethodPost, "/account/password-reset").
		Summary("Email a password reset code").
		Description("The response does not reveal whether the address has an account.").
		Tags("verification").
		Form(emailField).
		Response(http.StatusAccepted, statusBody{}, "Request accepted").
		Build()

	doc.Route(http.MethodGet, "/account/password-reset/confirm").
		Summary("Whether this session holds a verified reset grant").
		Tags("verification").
		Response(http.StatusOK, resetReadyResponse{}, "Reset state").
		Build()

	doc.Route(http.MethodPost, "/account/password-reset/confirm").
		Summary("Set a new password with a verified reset grant").
		Description("Every other session of the account is signed out.").
		Tags("verification").
		Form(apidoc.FormField{Name: "token", Description: "Reset grant; defaults to the one held by the session"}, passwordField, repeatField).
		Response(http.StatusOK, statusBody{}, "Password updated").
		Response(http.StatusBadRequest, errorBody{}, "Grant invalid, expired or used").
		Build()

	doc.Route(http.MethodGet, "/account/verify/:action").
		Summary("Verification state").
		Tags("verification").
		PathEnum("action", "Verification flow", actionValues...).
		QueryParam("error", "Reason of the previous failed submission").
		Response(http.StatusOK, verifyStatusResponse{}, "State").
		Build()

	doc.Route(http.MethodPost, "/account/verify/:action").
		Summary("Submit a verification code").
		Description("Redirects to the flow's destination on success, or back to the verification page with error=not_found, expired, invalid or attempts_exceeded.").
		Tags("verification").
		PathEnum("action", "Verification flow", actionValues...).
		Form(apidoc.FormField{Name: "code", Description: "Six digit code", Required: true}).
		Redirect("Outcome of the submission").
		Response(http.StatusTooManyRequests, errorBody{}, "Too many failed attempts").
		Build()

	doc.Route(http.MethodPost, "/account/verify/:action/resend").
		Summary("Send a fresh code").
		Tags("verification").
		PathEnum("action", "Verification flow", actionValues...).
		Response(http.StatusOK, statusBody{}, "Code sent").
		Response(http.StatusNotFound, statusBody{}, "No verification in progress").
		Response(http.StatusTooManyRequests, statusBody{}, "A code was sent too recently").
		Build()

	return doc
}
