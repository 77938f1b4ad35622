package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the services
var (
	ErrInstanceMismatch      = errors.New("form instance mismatch")
	ErrInvalidToken          = errors.New("invalid token")
	ErrFieldKeyNotFound      = errors.New("field key not found")
	ErrFieldKeyHandleTaken   = errors.New("field key handle already exists")
	ErrFieldKeyImmutable     = errors.New("field key handle and type cannot change once values exist")
	ErrFormTypeNotFound      = errors.New("form type not found")
	ErrFormTypeInUse         = errors.New("form type is used by form instances")
	ErrFormInstanceNotFound  = errors.New("form instance not found")
	ErrSubmissionNotFound    = errors.New("submission not found")
	ErrInvalidDefinition     = errors.New("invalid form definition")
	ErrUnknownAttributeType  = errors.New("unknown attribute type")
	ErrUnknownActionType     = errors.New("unknown action type")
	ErrInvalidActionConfig   = errors.New("invalid action configuration")
	ErrSubmissionStoreFailed = errors.New("failed to store submission")
)

// ErrorCode is a machine readable API error code
type ErrorCode string

const (
	ErrorCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrorCodeValidation       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Field error codes
const (
	FieldErrorMissing  = "missing_value"
	FieldErrorInvalid  = "invalid_value"
	FieldErrorCaptcha  = "captcha"
	FieldErrorBannedIP = "banned_ip"
	FieldErrorAction   = "action"
)

// FieldError is one recoverable, user-facing validation error.
// Form level errors leave FieldKeyID empty.
type FieldError struct {
	FieldKeyID uint   `json:"fieldKeyId,omitempty"`
	Handle     string `json:"handle,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// MissingValueError reports an empty required field
type MissingValueError struct {
	DisplayName string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf(MsgFieldRequired, e.DisplayName)
}

// FieldValidationError reports a present but malformed value
type FieldValidationError struct {
	DisplayName string
	Detail      string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.DisplayName, e.Detail)
}

// ValidationErrors accumulates user-facing messages from admin forms
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

// HasErrors reports whether any message was collected
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}
