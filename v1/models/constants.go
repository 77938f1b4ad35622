package models

// LayoutMode selects how a form definition is decoded
type LayoutMode string

const (
	LayoutModeSimple LayoutMode = "simple"
	LayoutModeLayout LayoutMode = "layout"
)

// IsValid reports whether the mode is known
func (m LayoutMode) IsValid() bool {
	return m == LayoutModeSimple || m == LayoutModeLayout
}

// RenderMode selects raw (storage, plain text) or display (human facing) output
type RenderMode string

const (
	RenderRaw     RenderMode = "raw"
	RenderDisplay RenderMode = "display"
)

// SubmissionOutcome is the terminal state of one pipeline run
type SubmissionOutcome string

const (
	OutcomeCompleted SubmissionOutcome = "completed"
	OutcomeAborted   SubmissionOutcome = "aborted"
	OutcomeRejected  SubmissionOutcome = "rejected"
)

// Identifier prefixes
const (
	FormInstanceIDPrefix = "afi_"
	SubmissionIDPrefix   = "afs_"
)

// Request field names posted by the rendered form
const (
	InputInstanceID = "bID"
	InputFormTypeID = "aftID"
	InputToken      = "_token"
	InputCaptcha    = "ccmCaptchaCode"
)

const (
	// TokenScopePrefix scopes CSRF tokens to one form instance
	TokenScopePrefix = "attribute_form_"
	// SpamContext tags classifier input coming from form submissions
	SpamContext = "attribute_form"
)

// Hook names
const (
	EventPreSubmit  = "pre_attribute_forms_submit"
	EventPostSubmit = "post_attribute_forms_submit"
)

// Business event action used for metrics
const BusinessEventSubmission = "attribute_form_submission"

// User-facing messages
const (
	MsgFieldRequired     = "The field \"%s\" is required"
	MsgIncorrectCaptcha  = "Incorrect captcha code"
	MsgBannedIP          = "Unable to complete action: your IP address has been banned. Please contact the administrator of this site for more information."
	MsgActionNameEmpty   = "The Action Name cannot be empty"
	DefaultMailSubject   = "%s Attribute Form Submission"
	ColumnHeaderID       = "ID"
	ColumnHeaderDateTime = "Date Created"
)

// TokenScope returns the CSRF scope for a form instance
func TokenScope(instanceID string) string {
	return TokenScopePrefix + instanceID
}
