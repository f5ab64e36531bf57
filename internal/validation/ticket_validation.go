// Package validation checks caller input before anything touches the network.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

const (
	TitleMin       = 3
	TitleMax       = 120
	DescriptionMin = 3
	DescriptionMax = 500
	MessageMax     = 2000
)

// CreateTicketInput is the raw create payload. Status is optional.
type CreateTicketInput struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status,omitempty"`
}

// ValidatedTicket is a create payload that passed every rule.
type ValidatedTicket struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Status      domain.TicketStatus
}

// ValidatedUpdate is a status change that passed every rule.
type ValidatedUpdate struct {
	ID     string
	Status domain.TicketStatus
}

// ValidateCreate trims and checks a create payload, reporting every failing
// field at once.
func ValidateCreate(in CreateTicketInput) (ValidatedTicket, error) {
	var fields []apperrors.FieldError

	title := strings.TrimSpace(in.Title)
	fields = appendLength(fields, "title", title, TitleMin, TitleMax)

	description := strings.TrimSpace(in.Description)
	fields = appendLength(fields, "description", description, DescriptionMin, DescriptionMax)

	if !in.Priority.Valid() {
		fields = append(fields, apperrors.FieldError{
			Field:   "priority",
			Message: "priority must be one of ALTA, MEDIA, BAJA",
		})
	}

	status := in.Status
	if status == "" {
		status = domain.StatusOpen
	} else if !status.Valid() {
		fields = append(fields, invalidStatus())
	}

	if len(fields) > 0 {
		return ValidatedTicket{}, apperrors.NewValidationError(fields)
	}
	return ValidatedTicket{
		Title:       title,
		Description: description,
		Priority:    in.Priority,
		Status:      status,
	}, nil
}

// ValidateStatusUpdate requires a non-empty id and a known status.
func ValidateStatusUpdate(id string, status domain.TicketStatus) (ValidatedUpdate, error) {
	var fields []apperrors.FieldError
	id = strings.TrimSpace(id)
	if id == "" {
		fields = append(fields, apperrors.FieldError{Field: "id", Message: "ticket id is required"})
	}
	if !status.Valid() {
		fields = append(fields, invalidStatus())
	}
	if len(fields) > 0 {
		return ValidatedUpdate{}, apperrors.NewValidationError(fields)
	}
	return ValidatedUpdate{ID: id, Status: status}, nil
}

// ValidateResponse checks a technician reply and returns the trimmed message.
func ValidateResponse(id, message string) (string, error) {
	var fields []apperrors.FieldError
	if strings.TrimSpace(id) == "" {
		fields = append(fields, apperrors.FieldError{Field: "id", Message: "ticket id is required"})
	}
	message = strings.TrimSpace(message)
	fields = appendLength(fields, "message", message, 1, MessageMax)
	if len(fields) > 0 {
		return "", apperrors.NewValidationError(fields)
	}
	return message, nil
}

// ValidateAssignment checks an assignment. An empty technician unassigns.
func ValidateAssignment(id, technician string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "id", Message: "ticket id is required"},
		})
	}
	technician = strings.TrimSpace(technician)
	if utf8.RuneCountInString(technician) > TitleMax {
		return "", apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "technician", Message: fmt.Sprintf("technician must be at most %d characters", TitleMax)},
		})
	}
	return technician, nil
}

func appendLength(fields []apperrors.FieldError, field, value string, min, max int) []apperrors.FieldError {
	n := utf8.RuneCountInString(value)
	switch {
	case n < min && min == 1:
		return append(fields, apperrors.FieldError{Field: field, Message: fmt.Sprintf("%s is required", field)})
	case n < min:
		return append(fields, apperrors.FieldError{Field: field, Message: fmt.Sprintf("%s must be at least %d characters", field, min)})
	case n > max:
		return append(fields, apperrors.FieldError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, max)})
	}
	return fields
}

func invalidStatus() apperrors.FieldError {
	return apperrors.FieldError{Field: "status", Message: "status must be one of ABIERTO, EN_PROGRESO, CERRADO"}
}
