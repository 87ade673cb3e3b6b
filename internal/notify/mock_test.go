package notify_test

import (
	"context"
	"sync"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

type sentMessage struct {
	to  string
	msg notify.Message
}

// mockSender records deliveries. Email addresses come from User.Email and
// phone numbers go through notify.NormalizePhone, like the real transports.
type mockSender struct {
	channel  domain.Channel
	sendFunc func(ctx context.Context, to string, msg notify.Message) error

	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockSender) Channel() domain.Channel { return m.channel }

func (m *mockSender) Address(u *domain.User) (string, bool, error) {
	if m.channel == domain.ChannelSMS {
		if u.Phone == "" {
			return "", false, nil
		}
		n, err := notify.NormalizePhone(u.Phone)
		if err != nil {
			return "", true, err
		}
		return n, true, nil
	}
	return u.Email, u.Email != "", nil
}

func (m *mockSender) Send(ctx context.Context, to string, msg notify.Message) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, to, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, msg: msg})
	return nil
}

func (m *mockSender) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.to)
	}
	return out
}

func (m *mockSender) messageTo(to string) (notify.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sent {
		if s.to == to {
			return s.msg, true
		}
	}
	return notify.Message{}, false
}
