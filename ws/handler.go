package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func connectedMessage(msg string) []byte {
	data, _ := json.Marshal(gin.H{"type": "connected", "message": msg})
	return data
}

// HandleUploadWebSocket streams status updates of one upload.
func (h *Hub) HandleUploadWebSocket(c *gin.Context) {
	uploadID := c.Param("upload_id")
	if uploadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload_id: is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := h.Register(uploadID, conn)
	client.Send <- connectedMessage("listening to upload " + uploadID)
	go writePump(client)

	h.log.Debug("upload listener connected", "upload_id", uploadID)
	readPump(conn)
	h.Unregister(uploadID, conn)
	h.log.Debug("upload listener disconnected", "upload_id", uploadID)
}

// HandleGuidesWebSocket notifies listeners whenever the guide list changes.
func (h *Hub) HandleGuidesWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := h.RegisterGlobal(conn)
	client.Send <- connectedMessage("listening to guide list changes")
	go writePump(client)

	readPump(conn)
	h.UnregisterGlobal(conn)
}
