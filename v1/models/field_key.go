package models

// FieldKey is a named, typed field definition shared by form types
type FieldKey struct {
	ID                  uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Handle              string   `gorm:"column:handle;type:varchar(255);uniqueIndex;not null" json:"handle"`
	Name                string   `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Type                string   `gorm:"column:type;type:varchar(64);not null" json:"type"`
	Options             []string `gorm:"column:options;serializer:json" json:"options,omitempty"`
	Required            bool     `gorm:"column:required;not null;default:false" json:"required"`
	IsColumnHeader      bool     `gorm:"column:is_column_header;not null;default:false" json:"isColumnHeader"`
	IsSearchable        bool     `gorm:"column:is_searchable;not null;default:false" json:"isSearchable"`
	IsSearchableIndexed bool     `gorm:"column:is_searchable_indexed;not null;default:false" json:"isSearchableIndexed"`
	// CapturesEmail marks an email field whose value addresses the submitter
	CapturesEmail bool `gorm:"column:captures_email;not null;default:false" json:"capturesEmail"`
	// CapturesSubject marks a text field whose value builds the submitter mail subject
	CapturesSubject bool `gorm:"column:captures_subject;not null;default:false" json:"capturesSubject"`
	BaseModel
}

// TableName sets the table name for the FieldKey model
func (FieldKey) TableName() string {
	return "attribute_keys"
}

// DisplayName returns the human-facing name of the key, falling back to its handle
func (k FieldKey) DisplayName() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Handle
}

// FieldKeyFilter narrows FieldKey listings by their search flags
type FieldKeyFilter struct {
	ColumnHeader      bool
	Searchable        bool
	SearchableIndexed bool
}

// FieldValue is the raw value of one field for one submission
type FieldValue struct {
	SubmissionID string `gorm:"primaryKey;column:submission_id;type:varchar(64)" json:"submissionId"`
	FieldKeyID   uint   `gorm:"primaryKey;column:field_key_id;autoIncrement:false;index" json:"fieldKeyId"`
	Value        string `gorm:"column:value;type:text;not null;default:''" json:"value"`
}

// TableName sets the table name for the FieldValue model
func (FieldValue) TableName() string {
	return "attribute_form_values"
}
