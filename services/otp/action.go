package otp

import (
	"fmt"
	"strings"
	"time"
)

// Action selects the side effect a verification code authorizes.
type Action string

const (
	ActionRegistration  Action = "registration"
	ActionEmailChange   Action = "email_change"
	ActionPasswordReset Action = "password_reset"
)

var actions = []Action{ActionRegistration, ActionEmailChange, ActionPasswordReset}

func Actions() []Action {
	return append([]Action(nil), actions...)
}

func (a Action) Valid() bool {
	switch a {
	case ActionRegistration, ActionEmailChange, ActionPasswordReset:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// ParseAction accepts the canonical name or its hyphenated URL form.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !a.Valid() {
		return "", ErrUnknownAction
	}
	return a, nil
}

type messageSet struct {
	codeSubject    string
	codeBody       string
	confirmSubject string
	confirmBody    string
}

var messages = map[Action]messageSet{
	ActionRegistration: {
		codeSubject:    "Confirm your registration",
		codeBody:       "Your registration code is %s. It is valid for %s.",
		confirmSubject: "Your account is active",
		confirmBody:    "Your email address has been confirmed and your account is now active.",
	},
	ActionEmailChange: {
		codeSubject:    "Confirm your new email address",
		codeBody:       "Your email change code is %s. It is valid for %s.",
		confirmSubject: "Your email address was changed",
		confirmBody:    "This address is now the sign-in email for your account.",
	},
	ActionPasswordReset: {
		codeSubject:    "Password reset code",
		codeBody:       "Your password reset code is %s. It is valid for %s.",
		confirmSubject: "Password reset confirmed",
		confirmBody:    "Your reset code was accepted. If this was not you, contact support immediately.",
	},
}

func formatTTL(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if d == time.Minute {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
