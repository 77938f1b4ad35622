package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/formtree"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/gorm"
)

// SchemaField is a field reference resolved to its key
type SchemaField struct {
	Ref formtree.FieldRef
	Key models.FieldKey
	// Required is the effective flag: set on the reference or on the key
	Required bool
	// CapturesEmail and CapturesSubject combine the reference flags with the key's
	CapturesEmail   bool
	CapturesSubject bool
}

// Schema is a decoded form type with its fields in schema order
type Schema struct {
	FormType models.FormType
	Tree     *formtree.Tree
	Fields   []SchemaField
}

// Keys returns the schema's field keys in schema order
func (s *Schema) Keys() []models.FieldKey {
	keys := make([]models.FieldKey, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// FormTypeService manages form type schemas
type FormTypeService struct {
	db   *gorm.DB
	keys *FieldKeyService
}

// NewFormTypeService creates a new form type service
func NewFormTypeService(db *gorm.DB, keys *FieldKeyService) *FormTypeService {
	return &FormTypeService{db: db, keys: keys}
}

// CreateFormType validates and stores a new form type
func (s *FormTypeService) CreateFormType(ctx context.Context, req *models.FormTypeRequest) (*models.FormType, error) {
	ft := models.FormType{}
	if err := s.apply(ctx, &ft, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&ft).Error; err != nil {
		return nil, fmt.Errorf("failed to create form type: %w", err)
	}
	slog.Info("Form type created", "formTypeID", ft.ID, "name", ft.Name)
	return &ft, nil
}

// UpdateFormType replaces the definition and settings of a form type
func (s *FormTypeService) UpdateFormType(ctx context.Context, id uint, req *models.FormTypeRequest) (*models.FormType, error) {
	ft, err := s.GetFormType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, ft, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(ft).Error; err != nil {
		return nil, fmt.Errorf("failed to update form type: %w", err)
	}
	return ft, nil
}

// apply validates req and copies it onto ft
func (s *FormTypeService) apply(ctx context.Context, ft *models.FormType, req *models.FormTypeRequest) error {
	var problems models.ValidationErrors

	name := strings.TrimSpace(req.Name)
	if name == "" {
		problems = append(problems, "name is required")
	}
	mode := req.LayoutMode
	if mode == "" {
		mode = models.LayoutModeSimple
	}

	definition := strings.TrimSpace(string(req.Definition))
	tree, err := formtree.Parse(mode, []byte(definition))
	if err != nil {
		problems = append(problems, err.Error())
	} else {
		keys, err := s.keys.LoadFieldKeys(ctx, tree.FieldKeyIDs())
		if err != nil {
			return err
		}
		if missing := len(tree.FieldKeyIDs()) - len(keys); missing > 0 {
			found := make(map[uint]bool, len(keys))
			for _, k := range keys {
				found[k.ID] = true
			}
			for _, id := range tree.FieldKeyIDs() {
				if !found[id] {
					problems = append(problems, fmt.Sprintf("definition references unknown field key %d", id))
				}
			}
		}
	}

	recipients := models.ParseRecipients(strings.Join(req.RecipientEmails, ","))
	for _, addr := range recipients {
		if parsed, err := mail.ParseAddress(addr); err != nil || parsed.Address != addr {
			problems = append(problems, fmt.Sprintf("invalid recipient email %q", addr))
		}
	}
	if req.NotifyAdmin && len(recipients) == 0 {
		problems = append(problems, "at least one recipient email is required to notify the administrator")
	}

	if problems.HasErrors() {
		return problems
	}

	ft.Name = name
	ft.LayoutMode = mode
	ft.Definition = definition
	ft.DisplayCaptcha = req.DisplayCaptcha
	ft.DeleteSpam = req.DeleteSpam
	ft.TreatSpamAsSuccess = req.TreatSpamAsSuccess
	ft.NotifyAdmin = req.NotifyAdmin
	ft.NotifySubmitter = req.NotifySubmitter
	ft.RecipientEmails = models.JoinRecipients(recipients)
	ft.SubmitMessage = req.SubmitMessage
	return nil
}

// GetFormType retrieves a form type by ID
func (s *FormTypeService) GetFormType(ctx context.Context, id uint) (*models.FormType, error) {
	var ft models.FormType
	if err := s.db.WithContext(ctx).First(&ft, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", models.ErrFormTypeNotFound, id)
		}
		return nil, fmt.Errorf("failed to get form type: %w", err)
	}
	return &ft, nil
}

// ListFormTypes returns all form types ordered by name
func (s *FormTypeService) ListFormTypes(ctx context.Context) ([]models.FormType, error) {
	var types []models.FormType
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to list form types: %w", err)
	}
	return types, nil
}

// DeleteFormType removes a form type with its submissions and their values.
// Form types still placed by an instance cannot be deleted.
func (s *FormTypeService) DeleteFormType(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var instances int64
		if err := tx.Model(&models.FormInstance{}).Where("form_type_id = ?", id).Count(&instances).Error; err != nil {
			return fmt.Errorf("failed to count form instances: %w", err)
		}
		if instances > 0 {
			return fmt.Errorf("%w: %d instance(s)", models.ErrFormTypeInUse, instances)
		}

		submissions := tx.Model(&models.Submission{}).Select("id").Where("form_type_id = ?", id)
		if err := tx.Where("submission_id IN (?)", submissions).Delete(&models.FieldValue{}).Error; err != nil {
			return fmt.Errorf("failed to delete submission values: %w", err)
		}
		if err := tx.Where("form_type_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return fmt.Errorf("failed to delete submissions: %w", err)
		}
		result := tx.Delete(&models.FormType{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete form type: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", models.ErrFormTypeNotFound, id)
		}
		slog.Info("Form type deleted", "formTypeID", id)
		return nil
	})
}

// Schema decodes a form type and resolves its field references. References to
// keys that no longer exist are skipped with a warning.
func (s *FormTypeService) Schema(ctx context.Context, ft *models.FormType) (*Schema, error) {
	tree, err := formtree.Parse(ft.LayoutMode, []byte(ft.Definition))
	if err != nil {
		return nil, err
	}
	refs := tree.UniqueFields()
	ids := make([]uint, len(refs))
	for i, ref := range refs {
		ids[i] = ref.FieldKeyID
	}
	keys, err := s.keys.LoadFieldKeys(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.FieldKey, len(keys))
	for _, k := range keys {
		byID[k.ID] = k
	}

	schema := &Schema{FormType: *ft, Tree: tree}
	for _, ref := range refs {
		key, ok := byID[ref.FieldKeyID]
		if !ok {
			slog.WarnContext(ctx, "Form definition references a missing field key", "formTypeID", ft.ID, "fieldKeyID", ref.FieldKeyID)
			continue
		}
		schema.Fields = append(schema.Fields, SchemaField{
			Ref:             ref,
			Key:             key,
			Required:        ref.Required || key.Required,
			CapturesEmail:   (ref.NotifyFrom || key.CapturesEmail) && key.Type == "email",
			CapturesSubject: (ref.Subject || key.CapturesSubject) && key.Type == "text",
		})
	}
	return schema, nil
}

// SchemaByID loads a form type and decodes its schema
func (s *FormTypeService) SchemaByID(ctx context.Context, id uint) (*Schema, error) {
	ft, err := s.GetFormType(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Schema(ctx, ft)
}

// ToFormTypeResponse converts a form type to its API view
func ToFormTypeResponse(ft *models.FormType) models.FormTypeResponse {
	definition := json.RawMessage(ft.Definition)
	if len(definition) == 0 || !json.Valid(definition) {
		definition = json.RawMessage("null")
	}
	return models.FormTypeResponse{
		ID:                 ft.ID,
		Name:               ft.Name,
		LayoutMode:         ft.LayoutMode,
		Definition:         definition,
		DisplayCaptcha:     ft.DisplayCaptcha,
		DeleteSpam:         ft.DeleteSpam,
		TreatSpamAsSuccess: ft.TreatSpamAsSuccess,
		NotifyAdmin:        ft.NotifyAdmin,
		NotifySubmitter:    ft.NotifySubmitter,
		RecipientEmails:    ft.Recipients(),
		SubmitMessage:      ft.SubmitMessage,
		CreatedAt:          ft.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          ft.UpdatedAt.Format(time.RFC3339),
	}
}
