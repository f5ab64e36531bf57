package validation

import (
	"strings"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// ValidateCredentials checks a sign-in or sign-up form and returns the
// trimmed email.
func ValidateCredentials(email, password string) (string, error) {
	var fields []apperrors.FieldError
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		fields = append(fields, apperrors.FieldError{Field: "email", Message: "email is required"})
	case !strings.Contains(email, "@"):
		fields = append(fields, apperrors.FieldError{Field: "email", Message: "email is not a valid address"})
	}
	if password == "" {
		fields = append(fields, apperrors.FieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		return "", apperrors.NewValidationError(fields)
	}
	return email, nil
}

// ValidateRole accepts CLIENTE or TECNICO.
func ValidateRole(role domain.Role) error {
	if role.Valid() {
		return nil
	}
	return apperrors.NewValidationError([]apperrors.FieldError{
		{Field: "role", Message: "role must be one of CLIENTE, TECNICO"},
	})
}
