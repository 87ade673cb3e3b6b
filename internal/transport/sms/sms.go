// Package sms delivers notification texts through a Twilio-compatible
// Messages REST endpoint.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

const DefaultBaseURL = "https://api.twilio.com"

type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

// Transport implements notify.Sender for the SMS channel.
type Transport struct {
	cfg    Config
	client *http.Client
}

var _ notify.Sender = (*Transport)(nil)

func New(cfg Config) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Transport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *Transport) Channel() domain.Channel { return domain.ChannelSMS }

// Address normalizes u's phone number. Numbers outside the supported
// format are an error for this channel only.
func (t *Transport) Address(u *domain.User) (string, bool, error) {
	if strings.TrimSpace(u.Phone) == "" {
		return "", false, nil
	}
	n, err := notify.NormalizePhone(u.Phone)
	if err != nil {
		return "", true, fmt.Errorf("sms.Transport.Address: %w", err)
	}
	return n, true, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *Transport) Send(ctx context.Context, to string, msg notify.Message) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(t.cfg.BaseURL, "/"), url.PathEscape(t.cfg.AccountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.From)
	form.Set("Body", msg.SMS)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms.Transport.Send: build request: %w", err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms.Transport.Send: %w: %w", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr apiError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("sms.Transport.Send: %w: status %d: %d %s", domain.ErrDelivery, resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("sms.Transport.Send: %w: status %d", domain.ErrDelivery, resp.StatusCode)
}
