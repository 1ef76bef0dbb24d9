package handler

import (
	"net/http"

	"resolvex/backend/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the CORS layer and the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WatchComplaint upgrades to a websocket that receives every committed
// change of one complaint. Authorization is the same as for reading it.
func (h *Handler) WatchComplaint(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	a := actor(c)
	if _, err := h.Complaints.Get(c.Request.Context(), a, id); err != nil {
		h.abort(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.log.Warn().Err(err).Uint("complaint_id", id).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewWebSocketClient(h.Hub, conn, a.ID, id)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
