package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeNotifier_SendEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("uses default from address", func(t *testing.T) {
		primary := &MockEmailProvider{}
		n := NewCompositeNotifier(primary, nil, "shop@example.com")

		require.NoError(t, n.SendEmail(ctx, EmailNotification{To: "a@example.com", Subject: "Hi"}))
		require.Equal(t, 1, primary.Count())
		assert.Equal(t, "shop@example.com", primary.Sent[0].From)
	})

	t.Run("rejects empty recipient", func(t *testing.T) {
		n := NewCompositeNotifier(&MockEmailProvider{}, nil, "shop@example.com")
		assert.Error(t, n.SendEmail(ctx, EmailNotification{Subject: "Hi"}))
	})

	t.Run("falls back when primary fails", func(t *testing.T) {
		primary := &MockEmailProvider{Err: errors.New("relay down")}
		fallback := &MockEmailProvider{}
		n := NewCompositeNotifier(primary, fallback, "shop@example.com")

		require.NoError(t, n.SendEmail(ctx, EmailNotification{To: "a@example.com"}))
		assert.Equal(t, 0, primary.Count())
		assert.Equal(t, 1, fallback.Count())
	})

	t.Run("reports both failures", func(t *testing.T) {
		primary := &MockEmailProvider{Err: errors.New("relay down")}
		fallback := &MockEmailProvider{Err: errors.New("also down")}
		n := NewCompositeNotifier(primary, fallback, "shop@example.com")

		err := n.SendEmail(ctx, EmailNotification{To: "a@example.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relay down")
		assert.Contains(t, err.Error(), "also down")
	})

	t.Run("no provider", func(t *testing.T) {
		n := NewCompositeNotifier(nil, nil, "")
		assert.Error(t, n.SendEmail(ctx, EmailNotification{To: "a@example.com"}))
		assert.Error(t, n.Check(ctx))
	})
}

func TestBuildMessage(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		msg := string(BuildMessage(EmailNotification{From: "a@x", To: "b@x", Subject: "S", TextBody: "hello"}))
		assert.Contains(t, msg, "Subject: S\r\n")
		assert.Contains(t, msg, "text/plain")
		assert.Contains(t, msg, "hello")
	})

	t.Run("alternative parts", func(t *testing.T) {
		msg := string(BuildMessage(EmailNotification{TextBody: "hello", HTMLBody: "<p>hello</p>"}))
		assert.Contains(t, msg, "multipart/alternative")
		assert.Contains(t, msg, "<p>hello</p>")
	})
}
