package services

import (
	"context"
	"fmt"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// TokenIssuer issues anti-forgery tokens
type TokenIssuer interface {
	Generate(scope string) (string, error)
}

// FormRenderer builds what a page needs to draw a form instance
type FormRenderer struct {
	instances *FormInstanceService
	formTypes *FormTypeService
	tokens    TokenIssuer
}

// NewFormRenderer creates a new form renderer
func NewFormRenderer(instances *FormInstanceService, formTypes *FormTypeService, tokens TokenIssuer) *FormRenderer {
	return &FormRenderer{instances: instances, formTypes: formTypes, tokens: tokens}
}

// Render returns the decoded page tree, the referenced field keys and a
// fresh token scoped to the instance
func (r *FormRenderer) Render(ctx context.Context, instanceID string) (*models.FormRenderResponse, error) {
	instance, err := r.instances.GetFormInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	schema, err := r.formTypes.SchemaByID(ctx, instance.FormTypeID)
	if err != nil {
		return nil, err
	}
	token, err := r.tokens.Generate(models.TokenScope(instance.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to issue form token: %w", err)
	}

	keys := schema.Keys()
	for i, f := range schema.Fields {
		keys[i].Required = f.Required
		keys[i].CapturesEmail = f.CapturesEmail
		keys[i].CapturesSubject = f.CapturesSubject
	}
	submitText := instance.SubmitText
	if submitText == "" {
		submitText = "Submit"
	}
	return &models.FormRenderResponse{
		InstanceID:     instance.ID,
		FormTypeID:     instance.FormTypeID,
		FormName:       schema.FormType.Name,
		LayoutMode:     schema.FormType.LayoutMode,
		SubmitText:     submitText,
		DisplayCaptcha: schema.FormType.DisplayCaptcha,
		Token:          token,
		Pages:          schema.Tree.Pages,
		FieldKeys:      keys,
	}, nil
}
