package models

import (
	"strings"
	"time"
)

// FormType is an administrator-defined form schema
type FormType struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	LayoutMode LayoutMode `gorm:"column:layout_mode;type:varchar(16);not null;default:'simple'" json:"layoutMode"`
	// Definition holds the JSON page tree, decoded by the formtree package
	Definition         string `gorm:"column:definition;type:text;not null" json:"-"`
	DisplayCaptcha     bool   `gorm:"column:display_captcha;not null;default:false" json:"displayCaptcha"`
	DeleteSpam         bool   `gorm:"column:delete_spam;not null;default:false" json:"deleteSpam"`
	TreatSpamAsSuccess bool   `gorm:"column:treat_spam_as_success;not null;default:false" json:"treatSpamAsSuccess"`
	NotifyAdmin        bool   `gorm:"column:notify_admin;not null;default:false" json:"notifyAdmin"`
	NotifySubmitter    bool   `gorm:"column:notify_submitter;not null;default:false" json:"notifySubmitter"`
	RecipientEmails    string `gorm:"column:recipient_emails;type:text;not null;default:''" json:"-"`
	SubmitMessage      string `gorm:"column:submit_message;type:text;not null;default:''" json:"submitMessage"`
	BaseModel
}

// TableName sets the table name for the FormType model
func (FormType) TableName() string {
	return "attribute_form_types"
}

// Recipients returns the recipient list in its stored order
func (f FormType) Recipients() []string {
	return ParseRecipients(f.RecipientEmails)
}

// ParseRecipients splits a comma separated address list, trimming blanks and dropping repeats
func ParseRecipients(list string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, addr := range strings.Split(list, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// JoinRecipients is the stored form of a recipient list
func JoinRecipients(addrs []string) string {
	return strings.Join(ParseRecipients(strings.Join(addrs, ",")), ",")
}

// FormInstance places a FormType on a page and owns its custom actions
type FormInstance struct {
	ID            string         `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	FormTypeID    uint           `gorm:"column:form_type_id;not null;index" json:"formTypeId"`
	SubmitText    string         `gorm:"column:submit_text;type:varchar(255);not null;default:''" json:"submitText"`
	CustomActions []CustomAction `gorm:"foreignKey:InstanceID;references:ID" json:"customActions"`
	BaseModel
}

// TableName sets the table name for the FormInstance model
func (FormInstance) TableName() string {
	return "attribute_form_instances"
}

// CustomAction is one configured side effect run after a clean submission
type CustomAction struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceID     string `gorm:"column:instance_id;type:varchar(64);not null;index" json:"instanceId"`
	ActionName     string `gorm:"column:action_name;type:varchar(255);not null" json:"actionName"`
	ActionType     string `gorm:"column:action_type;type:varchar(64);not null" json:"actionType"`
	ActionData     string `gorm:"column:action_data;type:text;not null;default:''" json:"actionData"`
	ExecutionOrder int    `gorm:"column:execution_order;not null;default:0" json:"executionOrder"`
}

// TableName sets the table name for the CustomAction model
func (CustomAction) TableName() string {
	return "attribute_form_actions"
}

// Submission is one stored form submission
type Submission struct {
	ID          string       `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	FormTypeID  uint         `gorm:"column:form_type_id;not null;index" json:"formTypeId"`
	InstanceID  string       `gorm:"column:instance_id;type:varchar(64);index" json:"instanceId"`
	IsSpam      bool         `gorm:"column:is_spam;not null;default:false" json:"isSpam"`
	SubmitterIP string       `gorm:"column:submitter_ip;type:varchar(64)" json:"-"`
	Values      []FieldValue `gorm:"foreignKey:SubmissionID;references:ID" json:"-"`
	BaseModel
}

// TableName sets the table name for the Submission model
func (Submission) TableName() string {
	return "attribute_form_submissions"
}

// SubmittedAt returns the creation time formatted for listings
func (s Submission) SubmittedAt() string {
	return s.CreatedAt.Format(time.RFC3339)
}
