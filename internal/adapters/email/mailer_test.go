package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := &sesMailer{client: client, from: `"Tickets" <tickets@example.com>`, logger: discardLogger()}

	err := m.Send(context.Background(), "a@example.com", "Subject", "<p>hi</p>", "")
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, `"Tickets" <tickets@example.com>`, aws.ToString(client.input.Source))
	assert.Equal(t, []string{"a@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Subject", aws.ToString(client.input.Message.Subject.Data))
	require.NotNil(t, client.input.Message.Body.Html)
	assert.Nil(t, client.input.Message.Body.Text)
}

func TestSESMailer_Send_error(t *testing.T) {
	boom := errors.New("throttled")
	m := &sesMailer{client: &fakeSES{err: boom}, from: "tickets@example.com", logger: discardLogger()}

	err := m.Send(context.Background(), "a@example.com", "s", "", "text")
	require.ErrorIs(t, err, boom)
}

func TestSESMailer_Send_noRecipient(t *testing.T) {
	client := &fakeSES{}
	m := &sesMailer{client: client, from: "tickets@example.com", logger: discardLogger()}

	require.Error(t, m.Send(context.Background(), "", "s", "", "text"))
	assert.Nil(t, client.input)
}

func TestNewMailer_fromHeader(t *testing.T) {
	m := NewMailer(MailerConfig{
		Provider:    "ses",
		FromAddress: "tickets@example.com",
		FromName:    "Events, Inc.",
		SES:         SESConfig{Region: "eu-west-1"},
	}, discardLogger())

	sm, ok := m.(*sesMailer)
	require.True(t, ok)
	assert.Equal(t, `"Events, Inc." <tickets@example.com>`, sm.from)
}

func TestNewMailer_provider(t *testing.T) {
	tests := []struct {
		provider string
		wantSES  bool
	}{
		{provider: "ses", wantSES: true},
		{provider: "noop"},
		{provider: ""},
		{provider: "carrier-pigeon"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			m := NewMailer(MailerConfig{Provider: tt.provider, SES: SESConfig{Region: "eu-west-1"}}, discardLogger())
			_, isSES := m.(*sesMailer)
			assert.Equal(t, tt.wantSES, isSES)
		})
	}
}
