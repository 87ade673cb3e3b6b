package notify

import (
	"context"

	"github.com/gosuda/orkestra/internal/domain"
)

// Message is one rendered notification. Email senders use Subject, Text and
// HTML; SMS senders use SMS. Slack uses Subject and Text.
type Message struct {
	Subject string
	Text    string
	HTML    string
	SMS     string
}

// Body returns the text recorded for a delivery on ch.
func (m Message) Body(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return m.SMS
	}
	return m.Text
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() domain.Channel
	// Address returns u's destination on this channel. ok is false when u
	// has none; err is set when u has one that cannot be used.
	Address(u *domain.User) (addr string, ok bool, err error)
	Send(ctx context.Context, to string, msg Message) error
}

// Registry is a simple map-based set of Senders, iterated in registration
// order.
type Registry struct {
	senders map[domain.Channel]Sender
	order   []domain.Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[domain.Channel]Sender),
	}
}

// Register adds s under its channel, replacing any previous sender.
func (r *Registry) Register(s Sender) {
	ch := s.Channel()
	if _, ok := r.senders[ch]; !ok {
		r.order = append(r.order, ch)
	}
	r.senders[ch] = s
}

// Get returns the sender for ch, or false if not registered.
func (r *Registry) Get(ch domain.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

// Senders returns every registered sender in registration order.
func (r *Registry) Senders() []Sender {
	out := make([]Sender, 0, len(r.order))
	for _, ch := range r.order {
		out = append(out, r.senders[ch])
	}
	return out
}
