package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
)

// templates maps each outbox template name to a subject/body pair,
// rendered with the payload map as the template context.
var templates = map[string]struct{ Subject, Body string }{
	TemplatePurchaseReceipt: {
		Subject: "Your credit purchase is confirmed",
		Body:    "Thanks for your purchase of {{.credits}} credits ({{.plan_code}}). Purchase ID: {{.purchase_id}}.",
	},
	TemplateAdminPurchaseAlert: {
		Subject: "Priority purchase alert",
		Body:    "Identity {{.identity_id}} completed a priority purchase ({{.plan_code}}). Purchase ID: {{.purchase_id}}.",
	},
	TemplateSubscriptionCreditsDelivered: {
		Subject: "Your monthly credits have arrived",
		Body:    "{{.credits}} credits from your {{.plan_code}} subscription are now available. Subscription: {{.subscription_id}}.",
	},
	TemplateAdminAlert: {
		Subject: "Billing admin alert",
		Body:    "{{.reason}} (identity {{.identity_id}}, subscription {{.subscription_id}}).",
	},
}

// TemplateRenderer renders the outbox's fixed template set with
// text/template — there is no templating or SMTP library anywhere in the
// example corpus, so this is stdlib by necessity
// rather than by default.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer { return &TemplateRenderer{} }

func (r *TemplateRenderer) Render(tmpl string, payload map[string]any) (subject, body string, err error) {
	t, ok := templates[tmpl]
	if !ok {
		return "", "", fmt.Errorf("email: unknown template %q", tmpl)
	}

	subject, err = renderString(t.Subject, payload)
	if err != nil {
		return "", "", err
	}
	body, err = renderString(t.Body, payload)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderString(tmpl string, payload map[string]any) (string, error) {
	parsed, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := parsed.Execute(&buf, payload); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SMTPSender delivers outbox emails over plain SMTP with PLAIN auth.
type SMTPSender struct {
	host, port, from string
	auth             smtp.Auth
}

func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host: host, port: port, from: from,
		auth: smtp.PlainAuth("", username, password, host),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.from, to, subject, body)
	addr := s.host + ":" + s.port
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, []byte(msg))
}
