package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/gorm"
)

// ResultsQuery pages a submission listing. A zero Limit returns every row.
type ResultsQuery struct {
	Limit  int
	Offset int
}

// ResultsService reads, exports and curates stored submissions
type ResultsService struct {
	db        *gorm.DB
	formTypes *FormTypeService
	keys      *FieldKeyService
	values    *ValueStore
}

// NewResultsService creates a new results service
func NewResultsService(db *gorm.DB, formTypes *FormTypeService, keys *FieldKeyService) *ResultsService {
	return &ResultsService{
		db:        db,
		formTypes: formTypes,
		keys:      keys,
		values:    NewValueStore(db, keys),
	}
}

// SubmissionTable projects the submissions of a form type into rows of
// ID, creation date and one display value per field in schema order, newest first.
func (s *ResultsService) SubmissionTable(ctx context.Context, formTypeID uint, q ResultsQuery) (*models.SubmissionTable, error) {
	schema, err := s.formTypes.SchemaByID(ctx, formTypeID)
	if err != nil {
		return nil, err
	}
	keys := schema.Keys()

	table := &models.SubmissionTable{
		FormTypeID: formTypeID,
		FormName:   schema.FormType.Name,
		ShowSpam:   !schema.FormType.DeleteSpam,
		Header:     []string{models.ColumnHeaderID, models.ColumnHeaderDateTime},
		Rows:       [][]string{},
		RowIsSpam:  []bool{},
	}
	for _, k := range keys {
		table.Header = append(table.Header, k.DisplayName())
	}

	query := s.db.WithContext(ctx).Model(&models.Submission{}).Where("form_type_id = ?", formTypeID)
	if err := query.Count(&table.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	var submissions []models.Submission
	page := s.db.WithContext(ctx).Where("form_type_id = ?", formTypeID).Order("created_at DESC, id DESC")
	if q.Limit > 0 {
		page = page.Limit(q.Limit).Offset(q.Offset)
	}
	if err := page.Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	ids := make([]string, len(submissions))
	for i, sub := range submissions {
		ids[i] = sub.ID
	}
	values, err := s.values.BulkRead(ctx, ids, keys, models.RenderDisplay)
	if err != nil {
		return nil, err
	}

	for _, sub := range submissions {
		row := append([]string{sub.ID, sub.SubmittedAt()}, values[sub.ID]...)
		table.Rows = append(table.Rows, row)
		table.RowIsSpam = append(table.RowIsSpam, sub.IsSpam)
	}
	return table, nil
}

// GetSubmission returns one submission with its rendered values in schema order
func (s *ResultsService) GetSubmission(ctx context.Context, id string, mode models.RenderMode) (*models.SubmissionResponse, error) {
	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	schema, err := s.formTypes.SchemaByID(ctx, sub.FormTypeID)
	if err != nil {
		return nil, err
	}
	keys := schema.Keys()
	values, err := s.values.BulkRead(ctx, []string{sub.ID}, keys, mode)
	if err != nil {
		return nil, err
	}

	resp := &models.SubmissionResponse{
		ID:         sub.ID,
		FormTypeID: sub.FormTypeID,
		InstanceID: sub.InstanceID,
		IsSpam:     sub.IsSpam,
		CreatedAt:  sub.CreatedAt.Format(time.RFC3339),
		Fields:     make([]models.SubmissionFieldResponse, 0, len(keys)),
	}
	for i, k := range keys {
		resp.Fields = append(resp.Fields, models.SubmissionFieldResponse{
			FieldKeyID: k.ID,
			Handle:     k.Handle,
			Name:       k.DisplayName(),
			Value:      values[sub.ID][i],
		})
	}
	return resp, nil
}

// DeleteSubmission removes a submission and its values in one transaction
func (s *ResultsService) DeleteSubmission(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.values.WithTx(tx).DeleteBySubmission(ctx, id); err != nil {
			return err
		}
		result := tx.Delete(&models.Submission{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete submission: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrSubmissionNotFound, id)
		}
		return nil
	})
}

// SetSpam flags or clears the spam flag of a retained submission
func (s *ResultsService) SetSpam(ctx context.Context, id string, isSpam bool) error {
	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(sub).Update("is_spam", isSpam).Error; err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return nil
}

func (s *ResultsService) getSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrSubmissionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}
