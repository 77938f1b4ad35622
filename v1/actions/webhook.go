package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// WebhookHandle identifies the webhook action
const WebhookHandle = "webhook"

type webhookConfig struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	TokenURL     string            `json:"tokenUrl,omitempty"`
	ClientID     string            `json:"clientId,omitempty"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Scopes       []string          `json:"scopes,omitempty"`
}

type webhookPayload struct {
	Event      string            `json:"event"`
	InstanceID string            `json:"instanceId"`
	Submission SubmissionView    `json:"submission"`
	Values     map[string]string `json:"values"`
}

// WebhookAction posts the submission as JSON to an endpoint, optionally
// authenticating with an OAuth2 client credentials grant
type WebhookAction struct {
	client *http.Client
}

// NewWebhookAction creates the action. A nil client gets a 10 second timeout.
func NewWebhookAction(client *http.Client) *WebhookAction {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAction{client: client}
}

func (a *WebhookAction) Handle() string { return WebhookHandle }
func (a *WebhookAction) Name() string   { return "Webhook" }

func (a *WebhookAction) ValidateForm(input RawInput, existingActionID string) error {
	_, err := a.buildConfig(input)
	return err
}

func (a *WebhookAction) ParseConfiguration(input RawInput, existingActionID string) ([]byte, error) {
	cfg, err := a.buildConfig(input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

// buildConfig validates input. An omitted client secret keeps the stored one.
func (a *WebhookAction) buildConfig(input RawInput) (webhookConfig, error) {
	cfg := webhookConfig{
		URL:          input.String("url"),
		Method:       strings.ToUpper(input.String("method")),
		Headers:      input.StringMap("headers"),
		TokenURL:     input.String("tokenUrl"),
		ClientID:     input.String("clientId"),
		ClientSecret: input.String("clientSecret"),
		Scopes:       input.Strings("scopes"),
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if len(cfg.Headers) == 0 {
		cfg.Headers = nil
	}

	if err := validateHTTPURL(cfg.URL); err != nil {
		return cfg, fmt.Errorf("%w: url: %w", models.ErrInvalidActionConfig, err)
	}
	switch cfg.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return cfg, fmt.Errorf("%w: unsupported method %s", models.ErrInvalidActionConfig, cfg.Method)
	}

	if cfg.TokenURL == "" {
		cfg.ClientID, cfg.ClientSecret, cfg.Scopes = "", "", nil
		return cfg, nil
	}
	if err := validateHTTPURL(cfg.TokenURL); err != nil {
		return cfg, fmt.Errorf("%w: tokenUrl: %w", models.ErrInvalidActionConfig, err)
	}
	if cfg.ClientID == "" {
		return cfg, fmt.Errorf("%w: clientId is required with tokenUrl", models.ErrInvalidActionConfig)
	}
	if cfg.ClientSecret == "" && len(input.Previous) > 0 {
		var prev webhookConfig
		if err := json.Unmarshal(input.Previous, &prev); err == nil && prev.ClientID == cfg.ClientID {
			cfg.ClientSecret = prev.ClientSecret
		}
	}
	if cfg.ClientSecret == "" {
		return cfg, fmt.Errorf("%w: clientSecret is required with tokenUrl", models.ErrInvalidActionConfig)
	}
	return cfg, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

func (a *WebhookAction) Execute(ctx context.Context, config []byte, sub SubmissionView, ectx ExecutionContext) error {
	var cfg webhookConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidActionConfig, err)
	}

	body, err := json.Marshal(webhookPayload{
		Event:      models.BusinessEventSubmission,
		InstanceID: ectx.InstanceID,
		Submission: sub,
		Values:     sub.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := a.client
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, a.client))
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err = fmt.Errorf("webhook %s returned status %d", cfg.URL, resp.StatusCode)
		}
	}
	monitoring.RecordExternalCall("webhook", strings.ToLower(cfg.Method), time.Since(start), err)
	return err
}
