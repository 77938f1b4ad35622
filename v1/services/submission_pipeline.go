package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/actions"
	"github.com/gov-dx-sandbox/attribute-forms/v1/hooks"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/notify"
	"github.com/gov-dx-sandbox/attribute-forms/v1/security"
	"gorm.io/gorm"
)

// ActionRunner executes one stored custom action
type ActionRunner interface {
	Execute(ctx context.Context, action models.CustomAction, sub actions.SubmissionView, ectx actions.ExecutionContext) error
}

// Notifier sends the admin and submitter notifications
type Notifier interface {
	NotifyAdmin(ctx context.Context, recipients []string, sub notify.Submission) error
	NotifySubmitter(ctx context.Context, sub notify.Submission) (bool, error)
}

// HookFirer dispatches pre and post submit events
type HookFirer interface {
	Fire(ctx context.Context, e hooks.Event)
}

// PipelineDependencies are the collaborators of a SubmissionPipeline
type PipelineDependencies struct {
	Instances *FormInstanceService
	FormTypes *FormTypeService
	Keys      *FieldKeyService
	Actions   ActionRunner
	Notifier  Notifier
	Tokens    security.TokenValidator
	Captcha   security.CaptchaVerifier
	BanList   security.BanList
	Spam      security.SpamClassifier
	Hooks     HookFirer
	SiteName  string
}

// SubmissionPipeline validates, stores and post-processes one form submission
type SubmissionPipeline struct {
	db     *gorm.DB
	deps   PipelineDependencies
	values *ValueStore
}

// NewSubmissionPipeline creates a pipeline
func NewSubmissionPipeline(db *gorm.DB, deps PipelineDependencies) *SubmissionPipeline {
	return &SubmissionPipeline{
		db:     db,
		deps:   deps,
		values: NewValueStore(db, deps.Keys),
	}
}

// Submit runs one submission for instanceID. A returned error is fatal and
// nothing was stored. Otherwise the result is either aborted with the
// validation errors or completed.
func (p *SubmissionPipeline) Submit(ctx context.Context, instanceID string, req *models.SubmissionRequest) (*models.SubmissionResult, error) {
	result, err := p.submit(ctx, instanceID, req)
	switch {
	case err != nil:
		monitoring.RecordBusinessEvent(models.BusinessEventSubmission, string(models.OutcomeRejected))
	default:
		monitoring.RecordBusinessEvent(models.BusinessEventSubmission, string(result.Outcome))
	}
	return result, err
}

func (p *SubmissionPipeline) submit(ctx context.Context, instanceID string, req *models.SubmissionRequest) (*models.SubmissionResult, error) {
	logger := monitoring.Logger(ctx, "instanceID", instanceID)

	// 1. the form must have been rendered for this instance
	instance, err := p.deps.Instances.GetFormInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if req.InstanceID != instance.ID {
		return nil, models.ErrInstanceMismatch
	}
	if req.FormTypeID != "" && req.FormTypeID != strconv.FormatUint(uint64(instance.FormTypeID), 10) {
		return nil, fmt.Errorf("%w: form type %s", models.ErrInstanceMismatch, req.FormTypeID)
	}

	// 2.
	p.fire(ctx, hooks.Event{
		Name:       models.EventPreSubmit,
		InstanceID: instance.ID,
		FormTypeID: instance.FormTypeID,
		RemoteIP:   req.RemoteIP,
	})

	// 3.
	if p.isBanned(ctx, logger, req.RemoteIP) {
		return abort(req, []models.FieldError{{Code: models.FieldErrorBannedIP, Message: models.MsgBannedIP}}), nil
	}

	// 4.
	if err := p.deps.Tokens.Validate(req.Token, models.TokenScope(instance.ID)); err != nil {
		logger.Warn("Rejected submission with invalid token", "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidToken, err)
	}

	schema, err := p.deps.FormTypes.SchemaByID(ctx, instance.FormTypeID)
	if err != nil {
		return nil, err
	}

	// 5.
	var fieldErrors []models.FieldError
	if schema.FormType.DisplayCaptcha {
		if err := p.deps.Captcha.Verify(ctx, req.CaptchaResponse, req.RemoteIP); err != nil {
			logger.Info("Captcha check failed", "error", err)
			fieldErrors = append(fieldErrors, models.FieldError{Code: models.FieldErrorCaptcha, Message: models.MsgIncorrectCaptcha})
		}
	}

	// 6.
	raw, invalid := p.validateFields(schema, req.Values)
	fieldErrors = append(fieldErrors, invalid...)

	// 7.
	if len(fieldErrors) > 0 {
		return abort(req, fieldErrors), nil
	}

	// 8.
	submission, stored, err := p.persist(ctx, instance, schema, raw, req.RemoteIP)
	if err != nil {
		logger.Error("Failed to store submission", "error", err)
		return nil, err
	}
	logger = logger.With("submissionID", submission.ID)

	// 9.
	isSpam, err := p.deps.Spam.IsSpam(ctx, strings.Join(stored, "\n"), models.SpamContext)
	if err != nil {
		logger.Warn("Spam classifier failed, accepting submission", "error", err)
		isSpam = false
	}

	// 10.
	deleted := false
	if isSpam {
		deleted = schema.FormType.DeleteSpam
		if err := p.disposeSpam(ctx, submission, deleted); err != nil {
			logger.Error("Failed to apply spam policy", "delete", deleted, "error", err)
		}
		logger.Info("Submission classified as spam", "deleted", deleted)
	}

	result := &models.SubmissionResult{
		Outcome: models.OutcomeCompleted,
		WasSpam: isSpam,
	}
	if !deleted {
		result.SubmissionID = submission.ID
	}

	view := p.view(schema, submission, stored)
	if !isSpam {
		// 11.
		result.ActionReports = p.runActions(ctx, logger, instance, schema, view)
		// 12.
		p.notify(ctx, logger, schema, view)
	}

	// 13.
	if !deleted {
		p.fire(ctx, hooks.Event{
			Name:         models.EventPostSubmit,
			InstanceID:   instance.ID,
			FormTypeID:   instance.FormTypeID,
			SubmissionID: submission.ID,
			IsSpam:       isSpam,
			RemoteIP:     req.RemoteIP,
			Values:       view.Values(),
		})
	}

	// 14.
	if !isSpam || schema.FormType.TreatSpamAsSuccess {
		result.Message = schema.FormType.SubmitMessage
	}
	logger.Info("Submission completed", "spam", isSpam, "actions", len(result.ActionReports))
	return result, nil
}

// validateFields looks up the posted value of every schema field and checks it
// against the effective required flag. Errors come back in schema order.
func (p *SubmissionPipeline) validateFields(schema *Schema, values map[string]string) ([]string, []models.FieldError) {
	raw := make([]string, len(schema.Fields))
	var fieldErrors []models.FieldError
	for i, f := range schema.Fields {
		raw[i] = lookupValue(values, f.Key)
		key := f.Key
		key.Required = f.Required
		if err := p.deps.Keys.ValidateRequiredness(key, raw[i]); err != nil {
			code := models.FieldErrorInvalid
			var missing *models.MissingValueError
			if errors.As(err, &missing) {
				code = models.FieldErrorMissing
			}
			fieldErrors = append(fieldErrors, models.FieldError{
				FieldKeyID: key.ID,
				Handle:     key.Handle,
				Code:       code,
				Message:    err.Error(),
			})
		}
	}
	return raw, fieldErrors
}

func (p *SubmissionPipeline) fire(ctx context.Context, e hooks.Event) {
	if p.deps.Hooks != nil {
		p.deps.Hooks.Fire(ctx, e)
	}
}

func (p *SubmissionPipeline) isBanned(ctx context.Context, logger *slog.Logger, ip string) bool {
	if p.deps.BanList == nil || ip == "" {
		return false
	}
	banned, err := p.deps.BanList.IsBanned(ctx, ip)
	if err != nil {
		logger.Warn("Ban list check failed", "ip", ip, "error", err)
	}
	return banned
}

// persist creates the submission and one value per schema field in a single
// transaction. It returns the normalized values in schema order.
func (p *SubmissionPipeline) persist(ctx context.Context, instance *models.FormInstance, schema *Schema, raw []string, remoteIP string) (*models.Submission, []string, error) {
	submission := &models.Submission{
		ID:          models.SubmissionIDPrefix + uuid.New().String(),
		FormTypeID:  instance.FormTypeID,
		InstanceID:  instance.ID,
		SubmitterIP: remoteIP,
	}
	stored := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		stored[i] = p.deps.Keys.Normalize(f.Key, raw[i])
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Values").Create(submission).Error; err != nil {
			return err
		}
		store := p.values.WithTx(tx)
		for i, f := range schema.Fields {
			if err := store.Put(ctx, submission.ID, f.Key.ID, stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", models.ErrSubmissionStoreFailed, err)
	}
	return submission, stored, nil
}

func (p *SubmissionPipeline) disposeSpam(ctx context.Context, submission *models.Submission, remove bool) error {
	if !remove {
		submission.IsSpam = true
		return p.db.WithContext(ctx).Model(submission).Update("is_spam", true).Error
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.values.WithTx(tx).DeleteBySubmission(ctx, submission.ID); err != nil {
			return err
		}
		return tx.Delete(&models.Submission{}, "id = ?", submission.ID).Error
	})
}

func (p *SubmissionPipeline) view(schema *Schema, submission *models.Submission, stored []string) actions.SubmissionView {
	view := actions.SubmissionView{
		ID:         submission.ID,
		FormTypeID: submission.FormTypeID,
		FormName:   schema.FormType.Name,
		InstanceID: submission.InstanceID,
		CreatedAt:  submission.CreatedAt,
	}
	for i, f := range schema.Fields {
		view.Fields = append(view.Fields, actions.FieldView{
			FieldKeyID: f.Key.ID,
			Handle:     f.Key.Handle,
			Name:       f.Key.DisplayName(),
			Type:       f.Key.Type,
			Raw:        stored[i],
			Display:    p.deps.Keys.Render(f.Key, stored[i], models.RenderDisplay),
		})
	}
	return view
}

func (p *SubmissionPipeline) runActions(ctx context.Context, logger *slog.Logger, instance *models.FormInstance, schema *Schema, view actions.SubmissionView) []models.ActionReport {
	if p.deps.Actions == nil || len(instance.CustomActions) == 0 {
		return nil
	}
	ectx := actions.ExecutionContext{
		RecipientEmails: schema.FormType.Recipients(),
		FormName:        schema.FormType.Name,
		InstanceID:      instance.ID,
		SiteName:        p.deps.SiteName,
	}
	reports := make([]models.ActionReport, 0, len(instance.CustomActions))
	for _, action := range SortActions(instance.CustomActions) {
		report := models.ActionReport{
			ActionID:   action.ID,
			ActionName: action.ActionName,
			ActionType: action.ActionType,
			Succeeded:  true,
		}
		if err := p.deps.Actions.Execute(ctx, action, view, ectx); err != nil {
			logger.Warn("Custom action failed", "actionID", action.ID, "actionType", action.ActionType, "error", err)
			report.Succeeded = false
			report.Error = err.Error()
		}
		reports = append(reports, report)
	}
	return reports
}

func (p *SubmissionPipeline) notify(ctx context.Context, logger *slog.Logger, schema *Schema, view actions.SubmissionView) {
	if p.deps.Notifier == nil {
		return
	}
	ft := schema.FormType
	if !ft.NotifyAdmin && !ft.NotifySubmitter {
		return
	}

	msg := notify.Submission{
		ID:          view.ID,
		FormName:    ft.Name,
		SubmittedAt: view.CreatedAt,
	}
	for i, f := range schema.Fields {
		display := view.Fields[i].Display
		msg.Fields = append(msg.Fields, notify.Field{Name: f.Key.DisplayName(), Value: display})
		if f.CapturesEmail {
			msg.Emails = append(msg.Emails, display)
		}
		if f.CapturesSubject {
			msg.SubjectParts = append(msg.SubjectParts, display)
		}
	}

	if ft.NotifyAdmin {
		if err := p.deps.Notifier.NotifyAdmin(ctx, ft.Recipients(), msg); err != nil {
			logger.Error("Admin notification failed", "error", err)
		}
	}
	if ft.NotifySubmitter {
		if _, err := p.deps.Notifier.NotifySubmitter(ctx, msg); err != nil {
			logger.Error("Submitter notification failed", "error", err)
		}
	}
}

// SortActions orders actions by execution order, then by ID
func SortActions(list []models.CustomAction) []models.CustomAction {
	sorted := append([]models.CustomAction(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExecutionOrder != sorted[j].ExecutionOrder {
			return sorted[i].ExecutionOrder < sorted[j].ExecutionOrder
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// lookupValue finds the posted value of key, by ID first and then by handle
func lookupValue(values map[string]string, key models.FieldKey) string {
	if v, ok := values[strconv.FormatUint(uint64(key.ID), 10)]; ok {
		return v
	}
	return values[key.Handle]
}

// abort builds the recoverable outcome, echoing the input with the captcha response cleared
func abort(req *models.SubmissionRequest, errs []models.FieldError) *models.SubmissionResult {
	input := make(map[string]string, len(req.Values)+3)
	for k, v := range req.Values {
		input[k] = v
	}
	input[models.InputInstanceID] = req.InstanceID
	input[models.InputFormTypeID] = req.FormTypeID
	input[models.InputCaptcha] = ""
	return &models.SubmissionResult{
		Outcome: models.OutcomeAborted,
		Errors:  errs,
		Input:   input,
	}
}
