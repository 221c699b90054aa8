package jobs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-clinic/meridian/jobs"
)

type captureEnqueuer struct {
	payloads []jobs.SendEmailPayload
}

func (c *captureEnqueuer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error {
	c.payloads = append(c.payloads, payload)
	return nil
}

func TestVerificationEmailCarriesLink(t *testing.T) {
	capture := &captureEnqueuer{}
	notifier := jobs.NewEmailNotifierWithEnqueuer(capture, "https://portal.example.com")

	err := notifier.SendVerificationEmail(context.Background(), "jane@x.com", "Jane", "tok123")
	require.NoError(t, err)
	require.Len(t, capture.payloads, 1)

	mail := capture.payloads[0]
	assert.Equal(t, "jane@x.com", mail.To)
	assert.Contains(t, mail.Subject, "verify")
	assert.Contains(t, mail.Body, "Jane")
	assert.Contains(t, mail.Body, "https://portal.example.com/auth/verify-email/tok123")
}

func TestPasswordResetEmailCarriesToken(t *testing.T) {
	capture := &captureEnqueuer{}
	notifier := jobs.NewEmailNotifierWithEnqueuer(capture, "https://portal.example.com")

	err := notifier.SendPasswordResetEmail(context.Background(), "jane@x.com", "tok456")
	require.NoError(t, err)
	require.Len(t, capture.payloads, 1)

	mail := capture.payloads[0]
	assert.Equal(t, "jane@x.com", mail.To)
	assert.Contains(t, mail.Body, "token=tok456")
	assert.Contains(t, mail.Body, "one hour")
}
