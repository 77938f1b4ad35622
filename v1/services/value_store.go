package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValueRenderer renders stored values of a key
type ValueRenderer interface {
	Render(key models.FieldKey, stored string, mode models.RenderMode) string
}

// ValueStore persists (submission, field key) -> value rows
type ValueStore struct {
	db       *gorm.DB
	renderer ValueRenderer
}

// NewValueStore creates a value store on db, which may be a transaction
func NewValueStore(db *gorm.DB, renderer ValueRenderer) *ValueStore {
	return &ValueStore{db: db, renderer: renderer}
}

// WithTx returns a store bound to the given transaction
func (s *ValueStore) WithTx(tx *gorm.DB) *ValueStore {
	return &ValueStore{db: tx, renderer: s.renderer}
}

// Put inserts a value or overwrites the existing one for the same pair
func (s *ValueStore) Put(ctx context.Context, submissionID string, fieldKeyID uint, value string) error {
	row := models.FieldValue{SubmissionID: submissionID, FieldKeyID: fieldKeyID, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "field_key_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store value for field key %d: %w", fieldKeyID, err)
	}
	return nil
}

// Get returns the rendered value of key for a submission, or "" when none is stored
func (s *ValueStore) Get(ctx context.Context, submissionID string, key models.FieldKey, mode models.RenderMode) (string, error) {
	var row models.FieldValue
	err := s.db.WithContext(ctx).
		Where("submission_id = ? AND field_key_id = ?", submissionID, key.ID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read value for field key %d: %w", key.ID, err)
	}
	return s.renderer.Render(key, row.Value, mode), nil
}

// DeleteBySubmission removes all values of a submission
func (s *ValueStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if err := s.db.WithContext(ctx).Where("submission_id = ?", submissionID).Delete(&models.FieldValue{}).Error; err != nil {
		return fmt.Errorf("failed to delete values of submission %s: %w", submissionID, err)
	}
	return nil
}

// DeleteByFieldKey removes all values stored for a field key
func (s *ValueStore) DeleteByFieldKey(ctx context.Context, fieldKeyID uint) error {
	if err := s.db.WithContext(ctx).Where("field_key_id = ?", fieldKeyID).Delete(&models.FieldValue{}).Error; err != nil {
		return fmt.Errorf("failed to delete values of field key %d: %w", fieldKeyID, err)
	}
	return nil
}

// BulkRead returns, per submission, the rendered values in the order of keys.
// Missing values come back as "". Row order in storage does not matter.
func (s *ValueStore) BulkRead(ctx context.Context, submissionIDs []string, keys []models.FieldKey, mode models.RenderMode) (map[string][]string, error) {
	out := make(map[string][]string, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return out, nil
	}

	var rows []models.FieldValue
	if err := s.db.WithContext(ctx).Where("submission_id IN ?", submissionIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read submission values: %w", err)
	}

	position := make(map[uint]int, len(keys))
	for i, k := range keys {
		position[k.ID] = i
	}
	for _, id := range submissionIDs {
		out[id] = make([]string, len(keys))
	}
	for _, row := range rows {
		i, ok := position[row.FieldKeyID]
		if !ok {
			continue
		}
		out[row.SubmissionID][i] = s.renderer.Render(keys[i], row.Value, mode)
	}
	return out, nil
}
