// Package notification renders and delivers the transactional emails of the
// invitation and password reset flows.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"gopkg.in/gomail.v2"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/logger"
)

// Template names a transactional email
type Template string

const (
	UserInvitationTemplate     Template = "UserInvitationTemplate"
	UserForgotPasswordTemplate Template = "UserForgotPasswordTemplate"
)

// TemplateData is the data made available to every template
type TemplateData struct {
	RecipientName    string
	OrganizationName string
	Link             string
	ExpiresIn        string
}

// Sender delivers a rendered template to one recipient
type Sender interface {
	Send(ctx context.Context, name Template, recipient string, data TemplateData) error
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[Template]emailTemplate{
	UserInvitationTemplate: {
		subject: "You have been invited to {{.OrganizationName}}",
		body: template.Must(template.New(string(UserInvitationTemplate)).Parse(`<p>Hello {{.RecipientName}},</p>
<p>You have been invited to join <strong>{{.OrganizationName}}</strong>.</p>
<p><a href="{{.Link}}">Accept the invitation</a>. The link expires in {{.ExpiresIn}}.</p>`)),
	},
	UserForgotPasswordTemplate: {
		subject: "Reset your password",
		body: template.Must(template.New(string(UserForgotPasswordTemplate)).Parse(`<p>Hello {{.RecipientName}},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{.Link}}">Choose a new password</a>. The link expires in {{.ExpiresIn}}.</p>
<p>If you did not ask for this you can ignore this email.</p>`)),
	},
}

// Render returns the subject and HTML body of a template.
func Render(name Template, data TemplateData) (string, string, error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	// Subjects are plain text.
	subject, err := texttemplate.New("subject").Parse(t.subject)
	if err != nil {
		return "", "", err
	}
	var subj, body bytes.Buffer
	if err := subject.Execute(&subj, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subj.String(), body.String(), nil
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers email through an SMTP relay
type SMTPSender struct {
	logger *logger.Logger
	dialer dialer
	from   string
}

// NewSMTPSender creates a sender from the email configuration
func NewSMTPSender(logger *logger.Logger, cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		logger: logger,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send renders name and delivers it to recipient
func (s *SMTPSender) Send(ctx context.Context, name Template, recipient string, data TemplateData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := Render(name, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.logger.WithField("template", string(name)).WithError(err).Error("Failed to send email")
		return fmt.Errorf("send %s: %w", name, err)
	}

	s.logger.WithField("template", string(name)).Info("Email sent")
	return nil
}

// LogSender only logs what would have been sent. It is used when email
// delivery is disabled.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a sender that never delivers
func NewLogSender(logger *logger.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, name Template, recipient string, data TemplateData) error {
	if _, _, err := Render(name, data); err != nil {
		return err
	}
	s.logger.WithField("template", string(name)).
		WithField("recipient", recipient).
		Info("Email delivery disabled, message dropped")
	return nil
}
