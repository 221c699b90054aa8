package jobs

import (
	"context"
	"fmt"
)

// Enqueuer is the slice of Client the notifier needs, kept narrow so
// tests can capture payloads without redis.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

type clientEnqueuer struct {
	client *Client
}

func (e clientEnqueuer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error {
	_, err := e.client.EnqueueSendEmail(ctx, payload)
	return err
}

// EmailNotifier implements the auth core's Notifier by enqueueing mail
// tasks. Delivery itself happens in the worker.
type EmailNotifier struct {
	enqueuer Enqueuer
	baseURL  string
}

// NewEmailNotifier builds a notifier that enqueues through the given
// Asynq client. baseURL is the externally reachable root used in links.
func NewEmailNotifier(client *Client, baseURL string) *EmailNotifier {
	return &EmailNotifier{enqueuer: clientEnqueuer{client: client}, baseURL: baseURL}
}

// NewEmailNotifierWithEnqueuer is the injection seam for tests.
func NewEmailNotifierWithEnqueuer(enqueuer Enqueuer, baseURL string) *EmailNotifier {
	return &EmailNotifier{enqueuer: enqueuer, baseURL: baseURL}
}

// SendVerificationEmail queues the welcome/verification message for a
// new registration.
func (n *EmailNotifier) SendVerificationEmail(ctx context.Context, email, name, token string) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nWelcome to Meridian Clinic. Please confirm your email address by visiting:\n\n%s/auth/verify-email/%s\n\nIf you did not create this account, you can ignore this message.\n",
		name, n.baseURL, token)
	return n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: "Welcome to Meridian Clinic: verify your email",
		Body:    body,
	})
}

// SendPasswordResetEmail queues the reset message. The link expires one
// hour after issuance.
func (n *EmailNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	body := fmt.Sprintf(
		"A password reset was requested for your Meridian Clinic account.\n\nUse this link within one hour to choose a new password:\n\n%s/reset-password?token=%s\n\nIf you did not request a reset, you can ignore this message.\n",
		n.baseURL, token)
	return n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: "Reset your Meridian Clinic password",
		Body:    body,
	})
}
