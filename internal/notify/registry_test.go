package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("register and get", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		s := &mockSender{channel: domain.ChannelEmail}
		reg.Register(s)

		got, ok := reg.Get(domain.ChannelEmail)
		require.True(t, ok)
		assert.Equal(t, s, got)
	})

	t.Run("get unregistered returns false", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()

		_, ok := reg.Get(domain.ChannelSMS)
		assert.False(t, ok)
	})

	t.Run("register overwrites previous and keeps order", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		email1 := &mockSender{channel: domain.ChannelEmail}
		sms := &mockSender{channel: domain.ChannelSMS}
		email2 := &mockSender{channel: domain.ChannelEmail}

		reg.Register(email1)
		reg.Register(sms)
		reg.Register(email2)

		senders := reg.Senders()
		require.Len(t, senders, 2)
		assert.Equal(t, email2, senders[0])
		assert.Equal(t, sms, senders[1])
	})
}
