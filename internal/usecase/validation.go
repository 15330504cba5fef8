package usecase

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/xavierca1/lead-relay/internal/entity"
)

const (
	MaxNoteLength   = 2000
	MaxSourceLength = 200
	MaxNameLength   = 200
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateLeadSubmission expects a normalized submission.
func ValidateLeadSubmission(input entity.LeadSubmission) []ValidationError {
	var errors []ValidationError

	if input.Email == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if !isAddressShaped(input.Email) {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	if utf8.RuneCountInString(input.Name) > MaxNameLength {
		errors = append(errors, ValidationError{"name", fmt.Sprintf("must not exceed %d characters", MaxNameLength)})
	}
	if utf8.RuneCountInString(input.Note) > MaxNoteLength {
		errors = append(errors, ValidationError{"note", fmt.Sprintf("must not exceed %d characters", MaxNoteLength)})
	}
	if utf8.RuneCountInString(input.Source) > MaxSourceLength {
		errors = append(errors, ValidationError{"source", fmt.Sprintf("must not exceed %d characters", MaxSourceLength)})
	}

	return errors
}

// isAddressShaped accepts a bare addr-spec only: "Ann <a@x.com>" parses as
// an address but is not one.
func isAddressShaped(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func joinValidationErrors(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, ", ")
}
