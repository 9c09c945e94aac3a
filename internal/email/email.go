// Package email is the external email-rendering/SMTP collaborator.
// The outbox worker in internal/service owns retry and
// durability; this package only renders a template to subject/body and
// hands it to a transport.
package email

import "context"

// Template names the outbox dispatches.
const (
	TemplatePurchaseReceipt           = "purchase_receipt"
	TemplateAdminPurchaseAlert        = "admin_purchase_alert"
	TemplateSubscriptionCreditsDelivered = "subscription_credits_delivered"
	TemplateAdminAlert                = "admin_alert"
)

// Renderer turns a template name and payload into a subject/body pair.
type Renderer interface {
	Render(template string, payload map[string]any) (subject, body string, err error)
}

// Sender delivers a rendered email. Failures here are what drive the
// outbox's attempts/max_attempts retry loop.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
