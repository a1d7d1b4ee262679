package domain

import "context"

// Notifier delivers a registration outcome to a user. Delivery is best-effort: the engine logs
// failures and never rolls a transition back because of them.
type Notifier interface {
	Notify(ctx context.Context, recipientID, title, body string) error
}

// LivePublisher pushes live updates to subscribed clients. Fire-and-forget.
type LivePublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Live-update topics.
const (
	TopicEventsCancelled  = "events.cancelled"
	TopicEventsInProgress = "events.inprogress"
	TopicEventsCompleted  = "events.completed"
)

// NotificationTopic is the per-user live-update topic.
func NotificationTopic(userID string) string {
	return "notifications." + userID
}

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// OutcomeEmailData holds data for the registration outcome email.
type OutcomeEmailData struct {
	Email    string
	FullName string
	Title    string
	Body     string
}
