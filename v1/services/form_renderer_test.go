package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormRenderer_Render(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tokens := security.NewTokenService(testSecret, time.Hour)
	renderer := NewFormRenderer(env.instances, env.formTypes, tokens)

	email := env.fieldKey(t, "email", "email")
	note := env.fieldKey(t, "note", "textarea")
	ft := env.formType(t, models.FormTypeRequest{
		Name:           "Contact",
		Definition:     simpleDefinition(ref(email.ID, "required", "sendNotificationFrom"), ref(note.ID)),
		DisplayCaptcha: true,
	})
	instance, err := env.instances.CreateFormInstance(ctx, &models.SaveFormInstanceRequest{FormTypeID: ft.ID})
	require.NoError(t, err)

	t.Run("Render_Success", func(t *testing.T) {
		resp, err := renderer.Render(ctx, instance.ID)
		require.NoError(t, err)

		assert.Equal(t, instance.ID, resp.InstanceID)
		assert.Equal(t, ft.ID, resp.FormTypeID)
		assert.Equal(t, "Contact", resp.FormName)
		assert.Equal(t, "Submit", resp.SubmitText)
		assert.True(t, resp.DisplayCaptcha)
		assert.NotNil(t, resp.Pages)

		require.Len(t, resp.FieldKeys, 2)
		assert.True(t, resp.FieldKeys[0].Required)
		assert.True(t, resp.FieldKeys[0].CapturesEmail)
		assert.False(t, resp.FieldKeys[1].Required)

		assert.NoError(t, tokens.Validate(resp.Token, models.TokenScope(instance.ID)))
		assert.Error(t, tokens.Validate(resp.Token, models.TokenScope("afi_other")))
	})

	t.Run("Render_UnknownInstance", func(t *testing.T) {
		_, err := renderer.Render(ctx, "afi_missing")
		assert.True(t, errors.Is(err, models.ErrFormInstanceNotFound))
	})
}
