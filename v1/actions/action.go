// Package actions defines the pluggable custom action contract and the built-in action types
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RawInput is what the form builder posted for one action row
type RawInput struct {
	Settings map[string]any
	// Previous is the configuration stored for the action being edited, nil for new actions
	Previous []byte
}

// String returns a trimmed string setting
func (in RawInput) String(key string) string {
	switch v := in.Settings[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Strings returns a list setting given either as a JSON array or a comma separated string
func (in RawInput) Strings(key string) []string {
	var parts []string
	switch v := in.Settings[key].(type) {
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	case string:
		parts = strings.Split(v, ",")
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Bool returns a boolean setting, accepting checkbox style strings
func (in RawInput) Bool(key string) bool {
	switch v := in.Settings[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

// StringMap returns an object setting of string values
func (in RawInput) StringMap(key string) map[string]string {
	out := make(map[string]string)
	switch v := in.Settings[key].(type) {
	case map[string]string:
		for k, val := range v {
			out[k] = val
		}
	case map[string]any:
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// FieldView is one rendered field of a submission
type FieldView struct {
	FieldKeyID uint   `json:"fieldKeyId"`
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Raw        string `json:"raw"`
	Display    string `json:"display"`
}

// SubmissionView is the read-only submission handed to actions
type SubmissionView struct {
	ID         string      `json:"id"`
	FormTypeID uint        `json:"formTypeId"`
	FormName   string      `json:"formName"`
	InstanceID string      `json:"instanceId"`
	CreatedAt  time.Time   `json:"createdAt"`
	Fields     []FieldView `json:"fields"`
}

// Values maps field handles to display values
func (v SubmissionView) Values() map[string]string {
	out := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		out[f.Handle] = f.Display
	}
	return out
}

// Text renders the submission as "Name: value" lines
func (v SubmissionView) Text() string {
	var b strings.Builder
	for _, f := range v.Fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Display)
		b.WriteString("\n")
	}
	return b.String()
}

// ExecutionContext carries per-instance values an action may need
type ExecutionContext struct {
	RecipientEmails []string
	FormName        string
	InstanceID      string
	SiteName        string
}

// ActionType is one kind of custom action
type ActionType interface {
	Handle() string
	Name() string
	// ParseConfiguration turns builder input into the opaque configuration that is stored
	ParseConfiguration(input RawInput, existingActionID string) ([]byte, error)
	// ValidateForm checks builder input before anything is saved
	ValidateForm(input RawInput, existingActionID string) error
	// Execute runs the action for a clean submission
	Execute(ctx context.Context, config []byte, sub SubmissionView, ectx ExecutionContext) error
}
