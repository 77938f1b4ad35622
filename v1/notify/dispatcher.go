package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"text/template"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

const adminTemplate = `There has been a submission of the form {{.Form}} through your website.

{{range .Fields}}{{.Name}}:
{{.Value}}

{{end}}Submission ID: {{.Submission.ID}}
Submitted: {{.Submission.SubmittedAt.Format "2006-01-02 15:04:05 MST"}}
`

const submitterTemplate = `Thank you for submitting the form {{.Form}}.

A copy of your submission follows.

{{range .Fields}}{{.Name}}:
{{.Value}}

{{end}}`

// Field is one rendered value in a notification body
type Field struct {
	Name  string
	Value string
}

// Submission carries the rendered values a notification needs
type Submission struct {
	ID          string
	FormName    string
	SubmittedAt time.Time
	Fields      []Field
	// Emails holds the display values of fields that capture the submitter's address, in schema order
	Emails []string
	// SubjectParts holds the display values of fields that make up the submitter mail subject
	SubjectParts []string
}

// templateData is what both templates see
type templateData struct {
	Submission Submission
	Form       string
	Fields     []Field
}

// Dispatcher builds and sends the two notification mails
type Dispatcher struct {
	mailer    Mailer
	from      Address
	siteName  string
	admin     *template.Template
	submitter *template.Template
}

// NewDispatcher creates a dispatcher. The configured from address is used when it
// looks like an address, otherwise the site super user's address is.
func NewDispatcher(mailer Mailer, mailCfg config.MailConfig, site config.SiteConfig) *Dispatcher {
	from := Address{Name: mailCfg.FromName, Email: mailCfg.FromAddress}
	if !strings.Contains(from.Email, "@") {
		from.Email = site.SuperUserEmail
	}
	return &Dispatcher{
		mailer:    mailer,
		from:      from,
		siteName:  site.Name,
		admin:     template.Must(template.New("admin").Parse(adminTemplate)),
		submitter: template.Must(template.New("submitter").Parse(submitterTemplate)),
	}
}

// From returns the sender address
func (d *Dispatcher) From() Address {
	return d.from
}

// Mailer returns the underlying transport
func (d *Dispatcher) Mailer() Mailer {
	return d.mailer
}

// NotifyAdmin mails the form's recipients. Captured submitter addresses become reply-to.
func (d *Dispatcher) NotifyAdmin(ctx context.Context, recipients []string, sub Submission) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	body, err := render(d.admin, sub)
	if err != nil {
		return err
	}
	msg := Message{
		From:    d.from,
		To:      recipients,
		Subject: fmt.Sprintf(models.DefaultMailSubject, sub.FormName),
		Body:    body,
	}
	msg.ReplyTo = submitterAddresses(ctx, sub)
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("admin notification: %w", err)
	}
	slog.DebugContext(ctx, "Admin notification sent", "submissionID", sub.ID, "recipients", len(recipients))
	return nil
}

// NotifySubmitter mails a copy to every captured submitter address. It returns
// false when the form captures no address.
func (d *Dispatcher) NotifySubmitter(ctx context.Context, sub Submission) (bool, error) {
	var to []string
	for _, a := range submitterAddresses(ctx, sub) {
		to = append(to, a.Email)
	}
	if len(to) == 0 {
		return false, nil
	}
	body, err := render(d.submitter, sub)
	if err != nil {
		return false, err
	}
	msg := Message{
		From:    d.from,
		To:      to,
		ReplyTo: []Address{d.from},
		Subject: d.submitterSubject(sub),
		Body:    body,
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("submitter notification: %w", err)
	}
	return true, nil
}

// submitterSubject is "<site>: " followed by the subject field values with no
// separator, or the admin subject when the form has no subject fields
func (d *Dispatcher) submitterSubject(sub Submission) string {
	if len(sub.SubjectParts) == 0 {
		return fmt.Sprintf(models.DefaultMailSubject, sub.FormName)
	}
	return d.siteName + ": " + lineBreaks.Replace(strings.Join(sub.SubjectParts, ""))
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// submitterAddresses parses the captured values. Empty values are skipped and
// anything that is not a single address on one line is dropped.
func submitterAddresses(ctx context.Context, sub Submission) []Address {
	var out []Address
	for _, value := range sub.Emails {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if strings.ContainsAny(value, "\r\n") {
			slog.WarnContext(ctx, "Dropped captured address with a line break", "submissionID", sub.ID)
			continue
		}
		addr, err := mail.ParseAddress(value)
		if err != nil {
			slog.WarnContext(ctx, "Dropped invalid captured address", "submissionID", sub.ID, "error", err)
			continue
		}
		out = append(out, Address{Name: addr.Name, Email: addr.Address})
	}
	return out
}

func render(t *template.Template, sub Submission) (string, error) {
	var buf bytes.Buffer
	data := templateData{Submission: sub, Form: sub.FormName, Fields: sub.Fields}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s notification: %w", t.Name(), err)
	}
	return buf.String(), nil
}
