package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gov-dx-sandbox/attribute-forms/v1/actions"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/gorm"
)

// ActionCatalog resolves action type handles
type ActionCatalog interface {
	Get(handle string) (actions.ActionType, error)
}

// FormInstanceService manages form instances and their custom actions
type FormInstanceService struct {
	db        *gorm.DB
	formTypes *FormTypeService
	catalog   ActionCatalog
}

// NewFormInstanceService creates a new form instance service
func NewFormInstanceService(db *gorm.DB, formTypes *FormTypeService, catalog ActionCatalog) *FormInstanceService {
	return &FormInstanceService{db: db, formTypes: formTypes, catalog: catalog}
}

// CreateFormInstance places a form type and stores its actions
func (s *FormInstanceService) CreateFormInstance(ctx context.Context, req *models.SaveFormInstanceRequest) (*models.FormInstance, error) {
	instance := &models.FormInstance{ID: models.FormInstanceIDPrefix + uuid.New().String()}
	if err := s.save(ctx, instance, req, true); err != nil {
		return nil, err
	}
	slog.Info("Form instance created", "instanceID", instance.ID, "formTypeID", instance.FormTypeID)
	return instance, nil
}

// SaveFormInstance replaces the settings and the complete action list of an
// instance. Actions are deleted and re-inserted in request order.
func (s *FormInstanceService) SaveFormInstance(ctx context.Context, id string, req *models.SaveFormInstanceRequest) (*models.FormInstance, error) {
	instance, err := s.GetFormInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, instance, req, false); err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *FormInstanceService) save(ctx context.Context, instance *models.FormInstance, req *models.SaveFormInstanceRequest, create bool) error {
	if problems := s.ValidateFormInstance(ctx, req, instance.CustomActions); problems.HasErrors() {
		return problems
	}

	previous := make(map[string]models.CustomAction, len(instance.CustomActions))
	for _, a := range instance.CustomActions {
		previous[strconv.FormatUint(uint64(a.ID), 10)] = a
	}

	// every configuration is parsed before anything is written
	rows := make([]models.CustomAction, 0, len(req.CustomActions))
	for i, in := range req.CustomActions {
		typ, err := s.catalog.Get(in.ActionType)
		if err != nil {
			return err
		}
		existingID := ""
		raw := actions.RawInput{Settings: in.Settings}
		if prev, ok := previous[in.ActionID]; ok {
			existingID = in.ActionID
			raw.Previous = []byte(prev.ActionData)
		}
		data, err := typ.ParseConfiguration(raw, existingID)
		if err != nil {
			return models.ValidationErrors{err.Error()}
		}
		rows = append(rows, models.CustomAction{
			InstanceID:     instance.ID,
			ActionName:     strings.TrimSpace(in.ActionName),
			ActionType:     in.ActionType,
			ActionData:     string(data),
			ExecutionOrder: i,
		})
	}

	instance.FormTypeID = req.FormTypeID
	instance.SubmitText = strings.TrimSpace(req.SubmitText)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if create {
			if err := tx.Omit("CustomActions").Create(instance).Error; err != nil {
				return fmt.Errorf("failed to create form instance: %w", err)
			}
		} else {
			if err := tx.Omit("CustomActions").Save(instance).Error; err != nil {
				return fmt.Errorf("failed to save form instance: %w", err)
			}
			if err := tx.Where("instance_id = ?", instance.ID).Delete(&models.CustomAction{}).Error; err != nil {
				return fmt.Errorf("failed to delete custom actions: %w", err)
			}
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert custom actions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	instance.CustomActions = rows
	return nil
}

// ValidateFormInstance checks the form type and every action row, collecting all problems
func (s *FormInstanceService) ValidateFormInstance(ctx context.Context, req *models.SaveFormInstanceRequest, existing []models.CustomAction) models.ValidationErrors {
	var problems models.ValidationErrors

	if _, err := s.formTypes.GetFormType(ctx, req.FormTypeID); err != nil {
		problems = append(problems, err.Error())
	}

	previous := make(map[string]models.CustomAction, len(existing))
	for _, a := range existing {
		previous[strconv.FormatUint(uint64(a.ID), 10)] = a
	}
	for _, in := range req.CustomActions {
		if strings.TrimSpace(in.ActionName) == "" {
			problems = append(problems, models.MsgActionNameEmpty)
		}
		typ, err := s.catalog.Get(in.ActionType)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		existingID := ""
		raw := actions.RawInput{Settings: in.Settings}
		if prev, ok := previous[in.ActionID]; ok {
			existingID = in.ActionID
			raw.Previous = []byte(prev.ActionData)
		}
		if err := typ.ValidateForm(raw, existingID); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// GetFormInstance retrieves an instance with its actions in execution order
func (s *FormInstanceService) GetFormInstance(ctx context.Context, id string) (*models.FormInstance, error) {
	var instance models.FormInstance
	err := s.db.WithContext(ctx).
		Preload("CustomActions", func(db *gorm.DB) *gorm.DB {
			return db.Order("execution_order ASC, id ASC")
		}).
		First(&instance, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrFormInstanceNotFound, id)
		}
		return nil, fmt.Errorf("failed to get form instance: %w", err)
	}
	return &instance, nil
}

// ListFormInstances returns instances, optionally only those of one form type
func (s *FormInstanceService) ListFormInstances(ctx context.Context, formTypeID uint) ([]models.FormInstance, error) {
	query := s.db.WithContext(ctx).Model(&models.FormInstance{})
	if formTypeID != 0 {
		query = query.Where("form_type_id = ?", formTypeID)
	}
	var instances []models.FormInstance
	if err := query.Order("created_at ASC, id ASC").Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("failed to list form instances: %w", err)
	}
	return instances, nil
}

// ListCustomActions returns the actions of an instance ordered by execution order
func (s *FormInstanceService) ListCustomActions(ctx context.Context, instanceID string) ([]models.CustomAction, error) {
	var rows []models.CustomAction
	err := s.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("execution_order ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list custom actions: %w", err)
	}
	return rows, nil
}

// DuplicateFormInstance copies an instance and its actions under a new ID
func (s *FormInstanceService) DuplicateFormInstance(ctx context.Context, id string) (*models.FormInstance, error) {
	source, err := s.GetFormInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := &models.FormInstance{
		ID:         models.FormInstanceIDPrefix + uuid.New().String(),
		FormTypeID: source.FormTypeID,
		SubmitText: source.SubmitText,
	}
	for _, a := range source.CustomActions {
		dup.CustomActions = append(dup.CustomActions, models.CustomAction{
			InstanceID:     dup.ID,
			ActionName:     a.ActionName,
			ActionType:     a.ActionType,
			ActionData:     a.ActionData,
			ExecutionOrder: a.ExecutionOrder,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("CustomActions").Create(dup).Error; err != nil {
			return fmt.Errorf("failed to create form instance: %w", err)
		}
		if len(dup.CustomActions) > 0 {
			if err := tx.Create(&dup.CustomActions).Error; err != nil {
				return fmt.Errorf("failed to copy custom actions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Form instance duplicated", "sourceID", id, "instanceID", dup.ID)
	return dup, nil
}

// DeleteFormInstance removes an instance and its actions. Submissions are kept.
func (s *FormInstanceService) DeleteFormInstance(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instance_id = ?", id).Delete(&models.CustomAction{}).Error; err != nil {
			return fmt.Errorf("failed to delete custom actions: %w", err)
		}
		result := tx.Delete(&models.FormInstance{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete form instance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrFormInstanceNotFound, id)
		}
		return nil
	})
}
