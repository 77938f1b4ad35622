package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
)

// ErrCaptchaFailed is returned when the captcha response was not accepted
var ErrCaptchaFailed = errors.New("captcha verification failed")

// CaptchaVerifier checks the captcha response a client submitted
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) error
}

// HTTPCaptchaVerifier posts to a siteverify style endpoint
type HTTPCaptchaVerifier struct {
	verifyURL string
	secret    string
	client    *http.Client
}

func NewHTTPCaptchaVerifier(cfg config.CaptchaConfig) *HTTPCaptchaVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCaptchaVerifier{
		verifyURL: cfg.VerifyURL,
		secret:    cfg.Secret,
		client:    &http.Client{Timeout: timeout},
	}
}

type captchaVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *HTTPCaptchaVerifier) Verify(ctx context.Context, response, remoteIP string) error {
	if strings.TrimSpace(response) == "" {
		return ErrCaptchaFailed
	}
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", response)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := v.client.Do(req)
	monitoring.RecordExternalCall("captcha", "verify", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("captcha verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}
	var result captchaVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode captcha response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrCaptchaFailed, strings.Join(result.ErrorCodes, ","))
	}
	return nil
}

// NonEmptyCaptcha accepts any non-blank response. It is used when no
// verification service is configured.
type NonEmptyCaptcha struct{}

func (NonEmptyCaptcha) Verify(_ context.Context, response, _ string) error {
	if strings.TrimSpace(response) == "" {
		return ErrCaptchaFailed
	}
	return nil
}

// NewCaptchaVerifier returns the HTTP verifier when a URL is configured
func NewCaptchaVerifier(cfg config.CaptchaConfig) CaptchaVerifier {
	if cfg.VerifyURL == "" {
		return NonEmptyCaptcha{}
	}
	return NewHTTPCaptchaVerifier(cfg)
}
