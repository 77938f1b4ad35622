package models

import "encoding/json"

// CreateFieldKeyRequest is the body of POST /api/v1/field-keys
type CreateFieldKeyRequest struct {
	Handle              string   `json:"handle"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	Options             []string `json:"options,omitempty"`
	Required            bool     `json:"required"`
	IsColumnHeader      bool     `json:"isColumnHeader"`
	IsSearchable        bool     `json:"isSearchable"`
	IsSearchableIndexed bool     `json:"isSearchableIndexed"`
	CapturesEmail       bool     `json:"capturesEmail"`
	CapturesSubject     bool     `json:"capturesSubject"`
}

// UpdateFieldKeyRequest is the body of PUT /api/v1/field-keys/{id}
type UpdateFieldKeyRequest struct {
	Handle              *string   `json:"handle,omitempty"`
	Name                *string   `json:"name,omitempty"`
	Type                *string   `json:"type,omitempty"`
	Options             *[]string `json:"options,omitempty"`
	Required            *bool     `json:"required,omitempty"`
	IsColumnHeader      *bool     `json:"isColumnHeader,omitempty"`
	IsSearchable        *bool     `json:"isSearchable,omitempty"`
	IsSearchableIndexed *bool     `json:"isSearchableIndexed,omitempty"`
	CapturesEmail       *bool     `json:"capturesEmail,omitempty"`
	CapturesSubject     *bool     `json:"capturesSubject,omitempty"`
}

// FormTypeRequest is the body for creating or replacing a form type
type FormTypeRequest struct {
	Name               string          `json:"name"`
	LayoutMode         LayoutMode      `json:"layoutMode"`
	Definition         json.RawMessage `json:"definition"`
	DisplayCaptcha     bool            `json:"displayCaptcha"`
	DeleteSpam         bool            `json:"deleteSpam"`
	TreatSpamAsSuccess bool            `json:"treatSpamAsSuccess"`
	NotifyAdmin        bool            `json:"notifyAdmin"`
	NotifySubmitter    bool            `json:"notifySubmitter"`
	RecipientEmails    []string        `json:"recipientEmails"`
	SubmitMessage      string          `json:"submitMessage"`
}

// FormTypeResponse is the API view of a form type
type FormTypeResponse struct {
	ID                 uint            `json:"id"`
	Name               string          `json:"name"`
	LayoutMode         LayoutMode      `json:"layoutMode"`
	Definition         json.RawMessage `json:"definition"`
	DisplayCaptcha     bool            `json:"displayCaptcha"`
	DeleteSpam         bool            `json:"deleteSpam"`
	TreatSpamAsSuccess bool            `json:"treatSpamAsSuccess"`
	NotifyAdmin        bool            `json:"notifyAdmin"`
	NotifySubmitter    bool            `json:"notifySubmitter"`
	RecipientEmails    []string        `json:"recipientEmails"`
	SubmitMessage      string          `json:"submitMessage"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
}

// CustomActionInput is one action row posted by the form builder.
// ActionID is set when the row edits an existing action.
type CustomActionInput struct {
	ActionID   string         `json:"actionID,omitempty"`
	ActionName string         `json:"actionName"`
	ActionType string         `json:"actionType"`
	Settings   map[string]any `json:"settings,omitempty"`
}

// SaveFormInstanceRequest is the body for creating or saving a form instance
type SaveFormInstanceRequest struct {
	FormTypeID    uint                `json:"formTypeId"`
	SubmitText    string              `json:"submitText"`
	CustomActions []CustomActionInput `json:"customActions"`
}

// ActionTypeResponse describes one registered action type
type ActionTypeResponse struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

// SubmissionRequest carries one posted form. Values are keyed by field key ID or handle.
type SubmissionRequest struct {
	InstanceID      string            `json:"bID"`
	FormTypeID      string            `json:"aftID,omitempty"`
	Token           string            `json:"_token"`
	CaptchaResponse string            `json:"ccmCaptchaCode,omitempty"`
	Values          map[string]string `json:"values"`
	RemoteIP        string            `json:"-"`
}

// ActionReport is the per-action result of a submission
type ActionReport struct {
	ActionID   uint   `json:"actionId"`
	ActionName string `json:"actionName"`
	ActionType string `json:"actionType"`
	Succeeded  bool   `json:"succeeded"`
	Error      string `json:"error,omitempty"`
}

// SubmissionResult is the non-fatal outcome of a pipeline run
type SubmissionResult struct {
	Outcome       SubmissionOutcome `json:"outcome"`
	Errors        []FieldError      `json:"errors,omitempty"`
	Input         map[string]string `json:"input,omitempty"`
	SubmissionID  string            `json:"submissionId,omitempty"`
	WasSpam       bool              `json:"-"`
	Message       string            `json:"message,omitempty"`
	ActionReports []ActionReport    `json:"-"`
}

// FormRenderResponse is what a page needs to draw a form instance
type FormRenderResponse struct {
	InstanceID     string     `json:"bID"`
	FormTypeID     uint       `json:"aftID"`
	FormName       string     `json:"formName"`
	LayoutMode     LayoutMode `json:"layoutMode"`
	SubmitText     string     `json:"submitText"`
	DisplayCaptcha bool       `json:"displayCaptcha"`
	Token          string     `json:"_token"`
	Pages          any        `json:"pages"`
	FieldKeys      []FieldKey `json:"fieldKeys"`
}

// SubmissionFieldResponse is one rendered value of a submission
type SubmissionFieldResponse struct {
	FieldKeyID uint   `json:"fieldKeyId"`
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Value      string `json:"value"`
}

// SubmissionResponse is the detail view of a stored submission
type SubmissionResponse struct {
	ID         string                    `json:"id"`
	FormTypeID uint                      `json:"formTypeId"`
	InstanceID string                    `json:"instanceId"`
	IsSpam     bool                      `json:"isSpam"`
	CreatedAt  string                    `json:"createdAt"`
	Fields     []SubmissionFieldResponse `json:"fields"`
}

// SubmissionTable is the tabular projection shared by listing and CSV export
type SubmissionTable struct {
	FormTypeID uint       `json:"formTypeId"`
	FormName   string     `json:"formName"`
	ShowSpam   bool       `json:"showSpam"`
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
	RowIsSpam  []bool     `json:"rowIsSpam"`
	Total      int64      `json:"total"`
}

// UpdateSpamRequest toggles the spam flag of a retained submission
type UpdateSpamRequest struct {
	IsSpam bool `json:"isSpam"`
}
