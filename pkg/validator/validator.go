package validator

import (
	"net/mail"
	"strings"

	"github.com/enigmateam/lovewidget/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func ValidateSignup(email, password, playerID string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	validatePassword(password, errs)

	if strings.TrimSpace(playerID) == "" {
		errs.Add("player_id", "Player id is required")
	}

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateEmail(email string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	return errs
}

func ValidatePassword(password string) ValidationErrors {
	errs := make(ValidationErrors)
	validatePassword(password, errs)
	return errs
}

func ValidateWidgetName(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Widget name is required")
	} else if len(name) > 100 {
		errs.Add("name", "Widget name is too long")
	}

	return errs
}

func ValidateUsername(username string) ValidationErrors {
	errs := make(ValidationErrors)

	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	}

	return errs
}

// ValidateContentType rejects wire values outside the closed content-kind
// set before they reach the core.
func ValidateContentType(value string) ValidationErrors {
	errs := make(ValidationErrors)
	if !domain.ContentType(value).Valid() {
		errs.Add("type", "Unknown content type")
	}
	return errs
}

// ValidateReactionType rejects wire values outside the closed reaction-kind
// set before they reach the core.
func ValidateReactionType(value string) ValidationErrors {
	errs := make(ValidationErrors)
	if !domain.ReactionType(value).Valid() {
		errs.Add("type", "Unknown reaction type")
	}
	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 7 {
		errs.Add("password", "Password must be at least 7 characters")
	}
}
