package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/notify"
)

// SendEmailHandle identifies the email copy action
const SendEmailHandle = "send_email"

type sendEmailConfig struct {
	To                []string `json:"to"`
	IncludeRecipients bool     `json:"includeRecipients"`
	Subject           string   `json:"subject,omitempty"`
}

// SendEmailAction mails a plain text copy of the submission to extra addresses
type SendEmailAction struct {
	mailer notify.Mailer
	from   notify.Address
}

func NewSendEmailAction(mailer notify.Mailer, from notify.Address) *SendEmailAction {
	return &SendEmailAction{mailer: mailer, from: from}
}

func (a *SendEmailAction) Handle() string { return SendEmailHandle }
func (a *SendEmailAction) Name() string   { return "Send Email Copy" }

func (a *SendEmailAction) ValidateForm(input RawInput, existingActionID string) error {
	to := input.Strings("to")
	if len(to) == 0 && !input.Bool("includeRecipients") {
		return fmt.Errorf("%w: at least one address or the form recipients is required", models.ErrInvalidActionConfig)
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: invalid email address %q", models.ErrInvalidActionConfig, addr)
		}
	}
	return nil
}

func (a *SendEmailAction) ParseConfiguration(input RawInput, existingActionID string) ([]byte, error) {
	if err := a.ValidateForm(input, existingActionID); err != nil {
		return nil, err
	}
	return json.Marshal(sendEmailConfig{
		To:                input.Strings("to"),
		IncludeRecipients: input.Bool("includeRecipients"),
		Subject:           input.String("subject"),
	})
}

func (a *SendEmailAction) Execute(ctx context.Context, config []byte, sub SubmissionView, ectx ExecutionContext) error {
	var cfg sendEmailConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidActionConfig, err)
	}

	to := cfg.To
	if cfg.IncludeRecipients {
		to = append(append([]string{}, to...), ectx.RecipientEmails...)
	}
	to = models.ParseRecipients(strings.Join(to, ","))
	if len(to) == 0 {
		return notify.ErrNoRecipients
	}

	subject := cfg.Subject
	if subject == "" {
		subject = fmt.Sprintf(models.DefaultMailSubject, sub.FormName)
	}
	return a.mailer.Send(ctx, notify.Message{
		From:    a.from,
		To:      to,
		Subject: subject,
		Body:    sub.Text(),
	})
}
