package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Timiochukwu/iothub-geofence/module/core/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the gateway in front of this service.
	CheckOrigin: func(*http.Request) bool { return true },
}

type WSHandler struct {
	hub *broadcast.Hub
}

func NewWSHandler(hub *broadcast.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) Register(r *gin.RouterGroup) {
	r.GET("/ws", h.Attach)
}

// Attach upgrades the connection and starts the pumps. The client joins no
// scope until it sends explicit join messages.
func (h *WSHandler) Attach(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	client := broadcast.NewClient(conn)
	go client.WritePump()
	go client.ReadPump(h.hub)
}
