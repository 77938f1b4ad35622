package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gov-dx-sandbox/attribute-forms/v1/attributes"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/gorm"
)

var handlePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// FieldKeyService is the registry of field keys: identity, validation and rendering
type FieldKeyService struct {
	db    *gorm.DB
	types *attributes.Registry
}

// NewFieldKeyService creates a new field key service
func NewFieldKeyService(db *gorm.DB, types *attributes.Registry) *FieldKeyService {
	return &FieldKeyService{db: db, types: types}
}

// CreateFieldKey creates a new field key
func (s *FieldKeyService) CreateFieldKey(ctx context.Context, req *models.CreateFieldKeyRequest) (*models.FieldKey, error) {
	handle := strings.TrimSpace(req.Handle)
	if !handlePattern.MatchString(handle) {
		return nil, models.ValidationErrors{"handle must start with a letter and contain only lowercase letters, digits and underscores"}
	}
	if _, err := s.types.Get(req.Type); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.FieldKey{}).Where("handle = ?", handle).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check field key handle: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrFieldKeyHandleTaken, handle)
	}

	key := models.FieldKey{
		Handle:              handle,
		Name:                strings.TrimSpace(req.Name),
		Type:                req.Type,
		Options:             req.Options,
		Required:            req.Required,
		IsColumnHeader:      req.IsColumnHeader,
		IsSearchable:        req.IsSearchable,
		IsSearchableIndexed: req.IsSearchableIndexed,
		CapturesEmail:       req.CapturesEmail && req.Type == "email",
		CapturesSubject:     req.CapturesSubject && req.Type == "text",
	}
	if key.Name == "" {
		key.Name = handle
	}

	if err := s.db.WithContext(ctx).Create(&key).Error; err != nil {
		return nil, fmt.Errorf("failed to create field key: %w", err)
	}

	slog.Info("Field key created", "fieldKeyID", key.ID, "handle", key.Handle, "type", key.Type)
	return &key, nil
}

// UpdateFieldKey applies the given changes. Handle and type are frozen once values reference the key.
func (s *FieldKeyService) UpdateFieldKey(ctx context.Context, id uint, req *models.UpdateFieldKeyRequest) (*models.FieldKey, error) {
	key, err := s.GetFieldKey(ctx, id)
	if err != nil {
		return nil, err
	}

	identityChanged := (req.Handle != nil && *req.Handle != key.Handle) || (req.Type != nil && *req.Type != key.Type)
	if identityChanged {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.FieldValue{}).Where("field_key_id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count field values: %w", err)
		}
		if count > 0 {
			return nil, models.ErrFieldKeyImmutable
		}
	}

	if req.Handle != nil && *req.Handle != key.Handle {
		handle := strings.TrimSpace(*req.Handle)
		if !handlePattern.MatchString(handle) {
			return nil, models.ValidationErrors{"handle must start with a letter and contain only lowercase letters, digits and underscores"}
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.FieldKey{}).Where("handle = ? AND id <> ?", handle, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check field key handle: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrFieldKeyHandleTaken, handle)
		}
		key.Handle = handle
	}
	if req.Type != nil {
		if _, err := s.types.Get(*req.Type); err != nil {
			return nil, err
		}
		key.Type = *req.Type
	}
	if req.Name != nil {
		key.Name = strings.TrimSpace(*req.Name)
	}
	if req.Options != nil {
		key.Options = *req.Options
	}
	if req.Required != nil {
		key.Required = *req.Required
	}
	if req.IsColumnHeader != nil {
		key.IsColumnHeader = *req.IsColumnHeader
	}
	if req.IsSearchable != nil {
		key.IsSearchable = *req.IsSearchable
	}
	if req.IsSearchableIndexed != nil {
		key.IsSearchableIndexed = *req.IsSearchableIndexed
	}
	if req.CapturesEmail != nil {
		key.CapturesEmail = *req.CapturesEmail
	}
	if req.CapturesSubject != nil {
		key.CapturesSubject = *req.CapturesSubject
	}
	key.CapturesEmail = key.CapturesEmail && key.Type == "email"
	key.CapturesSubject = key.CapturesSubject && key.Type == "text"

	if err := s.db.WithContext(ctx).Save(key).Error; err != nil {
		return nil, fmt.Errorf("failed to update field key: %w", err)
	}
	return key, nil
}

// GetFieldKey retrieves a field key by ID
func (s *FieldKeyService) GetFieldKey(ctx context.Context, id uint) (*models.FieldKey, error) {
	var key models.FieldKey
	if err := s.db.WithContext(ctx).First(&key, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", models.ErrFieldKeyNotFound, id)
		}
		return nil, fmt.Errorf("failed to get field key: %w", err)
	}
	return &key, nil
}

// GetFieldKeyByHandle retrieves a field key by handle
func (s *FieldKeyService) GetFieldKeyByHandle(ctx context.Context, handle string) (*models.FieldKey, error) {
	var key models.FieldKey
	if err := s.db.WithContext(ctx).First(&key, "handle = ?", handle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrFieldKeyNotFound, handle)
		}
		return nil, fmt.Errorf("failed to get field key: %w", err)
	}
	return &key, nil
}

// Resolve finds a field key by numeric ID or by handle
func (s *FieldKeyService) Resolve(ctx context.Context, idOrHandle string) (*models.FieldKey, error) {
	if id, err := strconv.ParseUint(idOrHandle, 10, 64); err == nil {
		return s.GetFieldKey(ctx, uint(id))
	}
	return s.GetFieldKeyByHandle(ctx, idOrHandle)
}

// ListFieldKeys returns keys ordered by ID, narrowed by the filter flags
func (s *FieldKeyService) ListFieldKeys(ctx context.Context, filter models.FieldKeyFilter) ([]models.FieldKey, error) {
	query := s.db.WithContext(ctx).Model(&models.FieldKey{})
	if filter.ColumnHeader {
		query = query.Where("is_column_header = ?", true)
	}
	if filter.Searchable {
		query = query.Where("is_searchable = ?", true)
	}
	if filter.SearchableIndexed {
		query = query.Where("is_searchable_indexed = ?", true)
	}

	var keys []models.FieldKey
	if err := query.Order("id ASC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list field keys: %w", err)
	}
	return keys, nil
}

// LoadFieldKeys fetches the given keys in one query and returns them in the
// requested order. IDs with no key are skipped.
func (s *FieldKeyService) LoadFieldKeys(ctx context.Context, ids []uint) ([]models.FieldKey, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.FieldKey
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to load field keys: %w", err)
	}
	byID := make(map[uint]models.FieldKey, len(found))
	for _, k := range found {
		byID[k.ID] = k
	}
	keys := make([]models.FieldKey, 0, len(ids))
	for _, id := range ids {
		if k, ok := byID[id]; ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// DeleteFieldKey removes a key and every value stored for it in one transaction
func (s *FieldKeyService) DeleteFieldKey(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewValueStore(tx, s).DeleteByFieldKey(ctx, id); err != nil {
			return err
		}
		result := tx.Delete(&models.FieldKey{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete field key: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", models.ErrFieldKeyNotFound, id)
		}
		slog.Info("Field key deleted", "fieldKeyID", id)
		return nil
	})
}

// ValidateRequiredness checks a submitted raw value against a key. An empty or
// whitespace-only value of a required key yields a *MissingValueError; a
// present but malformed one a *FieldValidationError. Keys that are not
// required never fail.
func (s *FieldKeyService) ValidateRequiredness(key models.FieldKey, raw string) error {
	if !key.Required {
		return nil
	}
	typ := s.typeOf(key)
	if typ.IsEmpty(key, raw) {
		return &models.MissingValueError{DisplayName: key.DisplayName()}
	}
	if err := typ.Validate(key, raw); err != nil {
		return &models.FieldValidationError{DisplayName: key.DisplayName(), Detail: err.Error()}
	}
	return nil
}

// Normalize converts a submitted raw value into its stored form
func (s *FieldKeyService) Normalize(key models.FieldKey, raw string) string {
	return s.typeOf(key).Normalize(key, raw)
}

// Render returns a stored value in raw or display form
func (s *FieldKeyService) Render(key models.FieldKey, stored string, mode models.RenderMode) string {
	if mode == models.RenderDisplay {
		return s.typeOf(key).Display(key, stored)
	}
	return stored
}

func (s *FieldKeyService) typeOf(key models.FieldKey) attributes.Type {
	typ, err := s.types.Get(key.Type)
	if err != nil {
		slog.Warn("Field key has an unregistered type, treating as text", "fieldKeyID", key.ID, "type", key.Type)
		return attributes.TextType{}
	}
	return typ
}
