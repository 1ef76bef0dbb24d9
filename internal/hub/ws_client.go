package hub

import (
	"encoding/json"
	"sync"
	"time"

	"resolvex/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// WebSocketClient implements Client over gorilla/websocket. Watchers only
// receive; anything they send is read and discarded to keep pings flowing.
type WebSocketClient struct {
	ID          string
	UserID      uint
	ComplaintID uint
	Conn        *websocket.Conn
	Hub         *ManagerService
	Send        chan models.ComplaintEvent

	log       zerolog.Logger
	closeOnce sync.Once
}

func NewWebSocketClient(h *ManagerService, conn *websocket.Conn, userID, complaintID uint) *WebSocketClient {
	id := uuid.NewString()
	return &WebSocketClient{
		ID:          id,
		UserID:      userID,
		ComplaintID: complaintID,
		Conn:        conn,
		Hub:         h,
		Send:        make(chan models.ComplaintEvent, sendBuffer),
		log:         h.log.With().Str("client", id).Logger(),
	}
}

func (c *WebSocketClient) GetID() string                                { return c.ID }
func (c *WebSocketClient) GetUserID() uint                              { return c.UserID }
func (c *WebSocketClient) GetComplaintID() uint                         { return c.ComplaintID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ComplaintEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump. It is safe to call twice.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("watcher read failed")
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Msg("encode complaint event")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
