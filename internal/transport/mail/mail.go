// Package mail delivers notification emails over SMTP as multipart
// text and HTML messages.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Transport implements notify.Sender for the email channel.
type Transport struct {
	cfg  Config
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

var _ notify.Sender = (*Transport)(nil)

func New(cfg Config) *Transport {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Transport{
		cfg:  cfg,
		auth: auth,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

func (t *Transport) Channel() domain.Channel { return domain.ChannelEmail }

func (t *Transport) Address(u *domain.User) (string, bool, error) {
	if u.Email == "" {
		return "", false, nil
	}
	addr, err := gomail.ParseAddress(u.Email)
	if err != nil {
		return "", true, fmt.Errorf("mail.Transport.Address: %q: %w", u.Email, domain.ErrValidation)
	}
	return addr.Address, true, nil
}

// Send composes msg and hands it to the relay. The SMTP exchange itself is
// not cancellable; ctx is only checked before it starts.
func (t *Transport) Send(ctx context.Context, to string, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail.Transport.Send: %w", err)
	}

	body, err := t.compose(to, msg)
	if err != nil {
		return fmt.Errorf("mail.Transport.Send: compose: %w", err)
	}

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	if err := t.send(addr, t.auth, t.cfg.From, []string{to}, body); err != nil {
		return fmt.Errorf("mail.Transport.Send: %w: %w", domain.ErrDelivery, err)
	}
	return nil
}

func (t *Transport) compose(to string, msg notify.Message) ([]byte, error) {
	var h gomail.Header
	h.SetDate(t.now())
	h.SetAddressList("From", []*gomail.Address{{Name: t.cfg.FromName, Address: t.cfg.From}})
	h.SetAddressList("To", []*gomail.Address{{Address: to}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline: %w", err)
	}
	if err := writePart(iw, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(iw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("close inline: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}

	return buf.Bytes(), nil
}

func writePart(iw *gomail.InlineWriter, contentType, content string) error {
	var ph gomail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s part: %w", contentType, err)
	}
	return nil
}
