package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
)

func validMessage() email.Message {
	return email.Message{
		To:      "user@example.com",
		Subject: "Payment failed",
		HTML:    "<p>Please update your card</p>",
		Tag:     "payment_reminder_day3",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.Message)
		errMsg string
	}{
		{name: "valid", mutate: func(*email.Message) {}},
		{name: "plus address", mutate: func(m *email.Message) { m.To = "a.b+tag@sub.example.com" }},
		{name: "empty to", mutate: func(m *email.Message) { m.To = "  " }, errMsg: "To is required"},
		{name: "bad to", mutate: func(m *email.Message) { m.To = "user@" }, errMsg: "valid email"},
		{name: "empty subject", mutate: func(m *email.Message) { m.Subject = "" }, errMsg: "Subject is required"},
		{name: "empty html", mutate: func(m *email.Message) { m.HTML = " " }, errMsg: "HTML is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := validMessage()
			tt.mutate(&m)
			err := m.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDevSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("writes html and metadata", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		msg := validMessage()
		msg.Metadata = map[string]string{"user_id": "u1"}

		id, err := email.NewDevSender(dir).Send(context.Background(), msg)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, files, 2)

		for _, f := range files {
			body, err := os.ReadFile(filepath.Join(dir, f.Name()))
			require.NoError(t, err)
			assert.Contains(t, f.Name(), "payment_reminder_day3")
			if strings.HasSuffix(f.Name(), ".html") {
				assert.Equal(t, msg.HTML, string(body))
				continue
			}
			var meta map[string]any
			require.NoError(t, json.Unmarshal(body, &meta))
			assert.Equal(t, id, meta["message_id"])
			assert.Equal(t, "user@example.com", meta["to"])
		}
	})

	t.Run("invalid message writes nothing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		msg := validMessage()
		msg.To = ""
		_, err := email.NewDevSender(dir).Send(context.Background(), msg)
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("uncreatable directory", func(t *testing.T) {
		t.Parallel()

		_, err := email.NewDevSender("/dev/null/nope").Send(context.Background(), validMessage())
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	base := email.Config{SenderEmail: "billing@example.com", SupportEmail: "support@example.com"}

	t.Run("postmark requires server token", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.Driver = email.DriverPostmark
		_, err := email.New(cfg)
		assert.ErrorIs(t, err, email.ErrInvalidConfig)

		cfg.PostmarkServerToken = "server-token"
		s, err := email.New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("dev driver", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.Driver = email.DriverDev
		cfg.DevDir = t.TempDir()
		s, err := email.New(cfg)
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, s)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.Driver = "smtp"
		_, err := email.New(cfg)
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	t.Run("bad sender", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.Driver = email.DriverDev
		cfg.DevDir = t.TempDir()
		cfg.SenderEmail = "billing"
		_, err := email.New(cfg)
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	assert.Panics(t, func() { email.MustNewPostmarkSender(email.Config{}) })
}
