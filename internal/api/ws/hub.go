package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
	redisstore "github.com/gosuda/orkestra/internal/store/redis"
)

// Subscriber is the pub/sub side the hub reads from.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub streams recorded activity events to WebSocket clients.
type Hub struct {
	sub Subscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(sub Subscriber) *Hub {
	return &Hub{sub: sub}
}

// ServeActivity handles WebSocket connections for the live activity feed of
// one target type ("project", "task" or "user").
// Subscribes to Redis channel "activity:<TYPE>".
func (h *Hub) ServeActivity(w http.ResponseWriter, r *http.Request) {
	target, ok := parseTarget(chi.URLParam(r, "target"))
	if !ok {
		http.Error(w, "unknown target type", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead also notices when they hang up.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.sub.Subscribe(ctx, redisstore.ActivityChannel(target))
	if err != nil {
		log.Error().Err(err).Str("target", string(target)).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}

func parseTarget(raw string) (domain.TargetType, bool) {
	switch t := domain.TargetType(strings.ToUpper(raw)); t {
	case domain.TargetProject, domain.TargetTask, domain.TargetUser:
		return t, true
	default:
		return "", false
	}
}
