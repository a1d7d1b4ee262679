package services

import (
	"context"
	"errors"
	"fmt"

	"eventbooking/internal/domain"
)

const outcomeTemplate = "registration_outcome"

// LiveNotification is the payload pushed on a user's notification topic.
type LiveNotification struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

type notifier struct {
	users    domain.UserRepository
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	live     domain.LivePublisher
}

// NewNotifier returns a Notifier that pushes each notification on the recipient's live topic
// and emails it. Either channel may be nil. Both are attempted; their errors are joined.
func NewNotifier(users domain.UserRepository, mailer domain.Mailer, renderer domain.EmailTemplateRenderer, live domain.LivePublisher) domain.Notifier {
	return &notifier{users: users, mailer: mailer, renderer: renderer, live: live}
}

func (n *notifier) Notify(ctx context.Context, recipientID, title, body string) error {
	var errs []error
	if n.live != nil {
		msg := LiveNotification{RecipientID: recipientID, Title: title, Body: body}
		if err := n.live.Publish(ctx, domain.NotificationTopic(recipientID), msg); err != nil {
			errs = append(errs, fmt.Errorf("publish notification: %w", err))
		}
	}
	if n.mailer != nil && n.renderer != nil {
		if err := n.email(ctx, recipientID, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *notifier) email(ctx context.Context, recipientID, title, body string) error {
	user, err := n.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("get recipient %s: %w", recipientID, err)
	}
	if user.Email == "" {
		return nil
	}
	data := &domain.OutcomeEmailData{Email: user.Email, FullName: user.FullName, Title: title, Body: body}
	subject, htmlBody, textBody, err := n.renderer.Render(outcomeTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", outcomeTemplate, err)
	}
	if err := n.mailer.Send(ctx, user.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send outcome email: %w", err)
	}
	return nil
}
