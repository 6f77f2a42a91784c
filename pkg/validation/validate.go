// Package validation holds the request-level rules applied before any
// payload reaches the persistence core. Limits are configurable at
// startup; zero values disable a limit.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"chatdb/pkg/models"
)

type Rules struct {
	MaxContentLen int
	MaxNameLen    int
}

var rules = Rules{MaxContentLen: 4096, MaxNameLen: 128}

func SetRules(r Rules) { rules = r }

// ValidateMessage checks an inbound message before it is appended.
func ValidateMessage(m models.MessageRecord) error {
	var errs []string
	if strings.TrimSpace(m.Content) == "" {
		errs = append(errs, "content is required")
	}
	if m.SenderEmail == "" {
		errs = append(errs, "sender_email is required")
	}
	if m.Type == "" {
		errs = append(errs, "type is required")
	}
	if rules.MaxContentLen > 0 && len(m.Content) > rules.MaxContentLen {
		errs = append(errs, fmt.Sprintf("content exceeds max length %d", rules.MaxContentLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateRegistration checks an inbound registration request.
func ValidateRegistration(firstName, lastName, email string) error {
	var errs []string
	if strings.TrimSpace(firstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if !strings.Contains(email, "@") {
		errs = append(errs, "email must contain @")
	}
	if rules.MaxNameLen > 0 && len(firstName)+len(lastName) > rules.MaxNameLen {
		errs = append(errs, fmt.Sprintf("name exceeds max length %d", rules.MaxNameLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
