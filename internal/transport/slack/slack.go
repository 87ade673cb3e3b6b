// Package slack delivers notifications as Slack direct messages. Users are
// matched to Slack accounts by email address.
package slack

import (
	"context"
	"fmt"
	"strings"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

// maxHeaderLen is Slack's limit for header block text.
const maxHeaderLen = 150

// API abstracts the subset of the Slack client used by Transport.
// This allows testing without real HTTP calls.
type API interface {
	GetUserByEmailContext(ctx context.Context, email string) (*slacklib.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

type Transport struct {
	api API
}

// New creates a Transport with the given API client, usually
// slacklib.New(botToken).
func New(api API) *Transport {
	return &Transport{api: api}
}

func (t *Transport) Channel() domain.Channel { return domain.ChannelSlack }

func (t *Transport) Address(u *domain.User) (string, bool, error) {
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return "", false, nil
	}
	return email, true, nil
}

// Send resolves the Slack account registered under the email address to and
// posts msg to it as a direct message.
func (t *Transport) Send(ctx context.Context, to string, msg notify.Message) error {
	user, err := t.api.GetUserByEmailContext(ctx, to)
	if err != nil {
		return fmt.Errorf("slack.Transport.Send: lookup %s: %w: %w", to, domain.ErrDelivery, err)
	}

	_, _, err = t.api.PostMessageContext(ctx, user.ID,
		slacklib.MsgOptionText(msg.Text, false),
		slacklib.MsgOptionBlocks(BuildMessageBlocks(msg)...),
	)
	if err != nil {
		return fmt.Errorf("slack.Transport.Send: %w: %w", domain.ErrDelivery, err)
	}
	return nil
}

// BuildMessageBlocks renders msg as a header with the subject followed by
// the plain-text body.
func BuildMessageBlocks(msg notify.Message) []slacklib.Block {
	var blocks []slacklib.Block

	if subject := strings.TrimSpace(msg.Subject); subject != "" {
		if len(subject) > maxHeaderLen {
			subject = subject[:maxHeaderLen-3] + "..."
		}
		blocks = append(blocks, slacklib.NewHeaderBlock(
			slacklib.NewTextBlockObject(slacklib.PlainTextType, subject, false, false),
		))
	}

	blocks = append(blocks, slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, msg.Text, false, false),
		nil,
		nil,
	))

	return blocks
}
