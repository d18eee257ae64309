package control

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventHub fans a stream of Events out to every connected WebSocket
// subscriber.
type eventHub struct {
	mu          sync.RWMutex
	subscribers map[*websocket.Conn]chan Event
	logger      *slog.Logger
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		subscribers: make(map[*websocket.Conn]chan Event),
		logger:      logger,
	}
}

func (h *eventHub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
}

func (h *eventHub) subscribe(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subscribers[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.subscribers[conn]
	delete(h.subscribers, conn)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (ctrl *Controller) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctrl.logger.Error("control: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := ctrl.events.subscribe(conn)
	defer ctrl.events.unsubscribe(conn)

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
