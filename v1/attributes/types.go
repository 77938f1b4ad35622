package attributes

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

const (
	dateLayout        = "2006-01-02"
	dateDisplayLayout = "January 2, 2006"
)

func isBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// TextType is a single line of free text
type TextType struct{}

func (TextType) Handle() string                                  { return "text" }
func (TextType) IsEmpty(_ models.FieldKey, raw string) bool      { return isBlank(raw) }
func (TextType) Validate(_ models.FieldKey, raw string) error    { return nil }
func (TextType) Normalize(_ models.FieldKey, raw string) string  { return strings.TrimSpace(raw) }
func (TextType) Display(_ models.FieldKey, stored string) string { return stored }

// TextareaType is multi-line free text, stored as typed
type TextareaType struct{}

func (TextareaType) Handle() string                                  { return "textarea" }
func (TextareaType) IsEmpty(_ models.FieldKey, raw string) bool      { return isBlank(raw) }
func (TextareaType) Validate(_ models.FieldKey, raw string) error    { return nil }
func (TextareaType) Normalize(_ models.FieldKey, raw string) string  { return raw }
func (TextareaType) Display(_ models.FieldKey, stored string) string { return stored }

// EmailType holds one email address
type EmailType struct{}

func (EmailType) Handle() string { return "email" }

func (EmailType) IsEmpty(_ models.FieldKey, raw string) bool { return isBlank(raw) }

func (EmailType) Validate(_ models.FieldKey, raw string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return errors.New("must be a valid email address")
	}
	return nil
}

func (EmailType) Normalize(_ models.FieldKey, raw string) string  { return strings.TrimSpace(raw) }
func (EmailType) Display(_ models.FieldKey, stored string) string { return stored }

// NumberType holds a decimal number
type NumberType struct{}

func (NumberType) Handle() string { return "number" }

func (NumberType) IsEmpty(_ models.FieldKey, raw string) bool { return isBlank(raw) }

func (NumberType) Validate(_ models.FieldKey, raw string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
		return errors.New("must be a number")
	}
	return nil
}

func (NumberType) Normalize(_ models.FieldKey, raw string) string  { return strings.TrimSpace(raw) }
func (NumberType) Display(_ models.FieldKey, stored string) string { return stored }

// BooleanType is a checkbox. A required checkbox must be ticked.
type BooleanType struct{}

func (BooleanType) Handle() string { return "boolean" }

func (BooleanType) IsEmpty(_ models.FieldKey, raw string) bool {
	return !parseBool(raw)
}

func (BooleanType) Validate(_ models.FieldKey, raw string) error { return nil }

func (BooleanType) Normalize(_ models.FieldKey, raw string) string {
	if parseBool(raw) {
		return "1"
	}
	return "0"
}

func (BooleanType) Display(_ models.FieldKey, stored string) string {
	if parseBool(stored) {
		return "Yes"
	}
	return "No"
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// SelectType restricts the value to one of the key's options
type SelectType struct{}

func (SelectType) Handle() string { return "select" }

func (SelectType) IsEmpty(_ models.FieldKey, raw string) bool { return isBlank(raw) }

func (SelectType) Validate(key models.FieldKey, raw string) error {
	value := strings.TrimSpace(raw)
	for _, opt := range key.Options {
		if opt == value {
			return nil
		}
	}
	return errors.New("must be one of the listed options")
}

func (SelectType) Normalize(_ models.FieldKey, raw string) string  { return strings.TrimSpace(raw) }
func (SelectType) Display(_ models.FieldKey, stored string) string { return stored }

// DateType holds a calendar date in ISO format
type DateType struct{}

func (DateType) Handle() string { return "date" }

func (DateType) IsEmpty(_ models.FieldKey, raw string) bool { return isBlank(raw) }

func (DateType) Validate(_ models.FieldKey, raw string) error {
	if _, err := time.Parse(dateLayout, strings.TrimSpace(raw)); err != nil {
		return errors.New("must be a date formatted as YYYY-MM-DD")
	}
	return nil
}

func (DateType) Normalize(_ models.FieldKey, raw string) string { return strings.TrimSpace(raw) }

func (DateType) Display(_ models.FieldKey, stored string) string {
	t, err := time.Parse(dateLayout, stored)
	if err != nil {
		return stored
	}
	return t.Format(dateDisplayLayout)
}
