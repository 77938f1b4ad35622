package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/actions"
	"github.com/gov-dx-sandbox/attribute-forms/v1/attributes"
	"github.com/gov-dx-sandbox/attribute-forms/v1/hooks"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/notify"
	"github.com/gov-dx-sandbox/attribute-forms/v1/security"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-csrf-secret"

type testEnv struct {
	db        *gorm.DB
	keys      *FieldKeyService
	formTypes *FormTypeService
	instances *FormInstanceService
	results   *ResultsService
	catalog   *actions.Registry
	recorder  *recordAction
}

func newTestEnv(t *testing.T) *testEnv {
	db := SetupSQLiteTestDB(t)
	keys := NewFieldKeyService(db, attributes.NewDefaultRegistry())
	formTypes := NewFormTypeService(db, keys)

	recorder := &recordAction{}
	catalog := actions.NewRegistry()
	catalog.MustRegister(recorder)

	return &testEnv{
		db:        db,
		keys:      keys,
		formTypes: formTypes,
		instances: NewFormInstanceService(db, formTypes, catalog),
		results:   NewResultsService(db, formTypes, keys),
		catalog:   catalog,
		recorder:  recorder,
	}
}

func (e *testEnv) fieldKey(t *testing.T, handle, typ string, opts ...func(*models.CreateFieldKeyRequest)) *models.FieldKey {
	t.Helper()
	req := &models.CreateFieldKeyRequest{
		Handle: handle,
		Name:   strings.ToUpper(handle[:1]) + handle[1:],
		Type:   typ,
	}
	for _, opt := range opts {
		opt(req)
	}
	key, err := e.keys.CreateFieldKey(context.Background(), req)
	require.NoError(t, err)
	return key
}

func (e *testEnv) formType(t *testing.T, req models.FormTypeRequest) *models.FormType {
	t.Helper()
	if req.Name == "" {
		req.Name = "Contact Us"
	}
	ft, err := e.formTypes.CreateFormType(context.Background(), &req)
	require.NoError(t, err)
	return ft
}

func (e *testEnv) instance(t *testing.T, formTypeID uint, rows ...models.CustomActionInput) *models.FormInstance {
	t.Helper()
	instance, err := e.instances.CreateFormInstance(context.Background(), &models.SaveFormInstanceRequest{
		FormTypeID:    formTypeID,
		SubmitText:    "Send",
		CustomActions: rows,
	})
	require.NoError(t, err)
	return instance
}

func (e *testEnv) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	query := e.db.Model(model)
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	require.NoError(t, query.Count(&n).Error)
	return n
}

// simpleDefinition builds a single page definition from akID/flag pairs
func simpleDefinition(fields ...map[string]any) json.RawMessage {
	page := map[string]any{"name": "Page 1", "attributes": fields}
	data, _ := json.Marshal(map[string]any{"formPages": []any{page}})
	return data
}

func ref(id uint, flags ...string) map[string]any {
	out := map[string]any{"akID": id}
	for _, f := range flags {
		out[f] = true
	}
	return out
}

// recordAction is an action type that records every execution in order
type recordAction struct {
	mu       sync.Mutex
	executed []string
}

func (a *recordAction) Handle() string { return "record" }
func (a *recordAction) Name() string   { return "Record" }

func (a *recordAction) ValidateForm(input actions.RawInput, existingActionID string) error {
	if input.String("label") == "" {
		return fmt.Errorf("%w: label is required", models.ErrInvalidActionConfig)
	}
	return nil
}

func (a *recordAction) ParseConfiguration(input actions.RawInput, existingActionID string) ([]byte, error) {
	return json.Marshal(map[string]any{"label": input.String("label"), "fail": input.Bool("fail")})
}

func (a *recordAction) Execute(ctx context.Context, config []byte, sub actions.SubmissionView, ectx actions.ExecutionContext) error {
	var cfg struct {
		Label string `json:"label"`
		Fail  bool   `json:"fail"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil {
		return err
	}
	a.mu.Lock()
	a.executed = append(a.executed, cfg.Label)
	a.mu.Unlock()
	if cfg.Fail {
		return errors.New("endpoint unavailable")
	}
	return nil
}

func (a *recordAction) Executed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.executed...)
}

func recordRow(label string) models.CustomActionInput {
	return models.CustomActionInput{
		ActionName: label,
		ActionType: "record",
		Settings:   map[string]any{"label": label},
	}
}

// mockNotifier is a testify mock of the notification dispatcher
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyAdmin(ctx context.Context, recipients []string, sub notify.Submission) error {
	args := m.Called(ctx, recipients, sub)
	return args.Error(0)
}

func (m *mockNotifier) NotifySubmitter(ctx context.Context, sub notify.Submission) (bool, error) {
	args := m.Called(ctx, sub)
	return args.Bool(0), args.Error(1)
}

// mockHooks is a testify mock of the hook dispatcher
type mockHooks struct {
	mock.Mock
}

func (m *mockHooks) Fire(ctx context.Context, e hooks.Event) {
	m.Called(ctx, e)
}

func firedEvent(name string) any {
	return mock.MatchedBy(func(e hooks.Event) bool { return e.Name == name })
}

type stubSpam struct {
	spam bool
	err  error
}

func (s stubSpam) IsSpam(ctx context.Context, content, kind string) (bool, error) {
	return s.spam, s.err
}

// recordingSpam keeps the last classifier input
type recordingSpam struct {
	content, kind string
}

func (s *recordingSpam) IsSpam(ctx context.Context, content, kind string) (bool, error) {
	s.content, s.kind = content, kind
	return false, nil
}

type pipelineEnv struct {
	*testEnv
	pipeline *SubmissionPipeline
	tokens   *security.TokenService
	notifier *mockNotifier
	hooks    *mockHooks
}

func newPipelineEnv(t *testing.T, spam security.SpamClassifier, banned ...string) *pipelineEnv {
	env := newTestEnv(t)
	banList, err := security.NewCIDRBanList(banned)
	require.NoError(t, err)
	if spam == nil {
		spam = stubSpam{}
	}

	notifier := &mockNotifier{}
	notifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("NotifySubmitter", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	hookMock := &mockHooks{}
	hookMock.On("Fire", mock.Anything, mock.Anything).Return().Maybe()

	tokens := security.NewTokenService(testSecret, time.Hour)
	pipeline := NewSubmissionPipeline(env.db, PipelineDependencies{
		Instances: env.instances,
		FormTypes: env.formTypes,
		Keys:      env.keys,
		Actions:   env.catalog,
		Notifier:  notifier,
		Tokens:    tokens,
		Captcha:   security.NonEmptyCaptcha{},
		BanList:   banList,
		Spam:      spam,
		Hooks:     hookMock,
		SiteName:  "Test Site",
	})
	return &pipelineEnv{testEnv: env, pipeline: pipeline, tokens: tokens, notifier: notifier, hooks: hookMock}
}

func (e *pipelineEnv) request(t *testing.T, instance *models.FormInstance, values map[string]string) *models.SubmissionRequest {
	t.Helper()
	token, err := e.tokens.Generate(models.TokenScope(instance.ID))
	require.NoError(t, err)
	return &models.SubmissionRequest{
		InstanceID: instance.ID,
		FormTypeID: fmt.Sprint(instance.FormTypeID),
		Token:      token,
		Values:     values,
		RemoteIP:   "192.0.2.10",
	}
}

// contactForm is a name/email/message form with the first two required
type contactForm struct {
	name, email, message *models.FieldKey
	formType             *models.FormType
	instance             *models.FormInstance
}

func (e *testEnv) contactForm(t *testing.T, customize func(*models.FormTypeRequest), rows ...models.CustomActionInput) *contactForm {
	t.Helper()
	f := &contactForm{
		name:    e.fieldKey(t, "name", "text"),
		email:   e.fieldKey(t, "email", "email"),
		message: e.fieldKey(t, "message", "textarea"),
	}
	req := models.FormTypeRequest{
		Name:          "Contact Us",
		Definition:    simpleDefinition(ref(f.name.ID, "required"), ref(f.email.ID, "required", "sendNotificationFrom"), ref(f.message.ID)),
		SubmitMessage: "Thanks!",
	}
	if customize != nil {
		customize(&req)
	}
	f.formType = e.formType(t, req)
	f.instance = e.instance(t, f.formType.ID, rows...)
	return f
}

func validContactValues() map[string]string {
	return map[string]string{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"message": "Hello there",
	}
}
