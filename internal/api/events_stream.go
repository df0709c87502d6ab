package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/annel0/blockworld/internal/eventbus"
)

const (
	eventQueueSize   = 256
	eventWriteWait   = 5 * time.Second
	eventReadTimeout = 60 * time.Second
	eventPingPeriod  = eventReadTimeout / 2
)

// EventMessage событие шины в виде, отправляемом клиенту websocket
type EventMessage struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	Priority  int             `json:"priority"`
	Payload   json.RawMessage `json:"payload"`
}

// handleEvents транслирует события мира в websocket.
// Параметр ?types=chunk.loaded,block.changed ограничивает типы событий.
func (rs *RestServer) handleEvents(c *gin.Context) {
	if rs.bus == nil {
		abortWith(c, http.StatusServiceUnavailable, "шина событий отключена")
		return
	}

	var filter eventbus.Filter
	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подписываемся до рукопожатия, чтобы не потерять события сразу после него
	out := make(chan []byte, eventQueueSize)
	sub, err := rs.bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		b, err := json.Marshal(EventMessage{
			ID:        ev.ID,
			Timestamp: ev.Timestamp,
			Source:    ev.Source,
			EventType: ev.EventType,
			Priority:  ev.Priority,
			Payload:   json.RawMessage(ev.Payload),
		})
		if err != nil {
			return
		}
		select {
		case out <- b:
		default:
			// Медленный клиент: событие теряется
		}
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	defer sub.Unsubscribe()

	conn, err := rs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	rs.logger.Debug("websocket событий открыт: %s types=%v", c.ClientIP(), filter.Types)

	_ = conn.SetReadDeadline(time.Now().Add(eventReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventReadTimeout))
	})

	writeErr := make(chan error, 1)
	go func() {
		ping := time.NewTicker(eventPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
					writeErr <- err
					return
				}
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Входящие сообщения не используются; чтение нужно для обнаружения закрытия
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	rs.logger.Debug("websocket событий закрыт: %s", c.ClientIP())
}
