package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// chatUpgrader accepts any origin. Cross-origin screening happens in
// the CORS layer before the upgrade.
var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatSocket mirrors the SSE stream over a WebSocket. Each text frame
// from the client is one messageRequest, and the agent events for that
// turn are written back as JSON frames.
func (s *Server) chatSocket(c *gin.Context) {
	chatID := c.Param("id")
	conn, err := chatUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("[API] websocket upgrade %s: %s", chatID, err.Error())
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	send := func(event types.StreamEvent) error {
		frame, err := jsoniter.Marshal(event)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, frame)
	}
	sendError := func(err error) {
		send(types.StreamEvent{
			Event: types.EventError,
			Data:  map[string]interface{}{"error": err.Error()},
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("[API] websocket %s: %s", chatID, err.Error())
			}
			return
		}

		var req messageRequest
		if err := jsoniter.Unmarshal(data, &req); err != nil {
			sendError(errs.Validation("invalid message payload: %s", err))
			continue
		}

		userMessage, history, err := s.beginTurn(ctx, chatID, req)
		if err != nil {
			sendError(err)
			continue
		}
		if err := s.relayTurn(ctx, chatID, userMessage, req.Content, history, send); err != nil {
			log.Error("[API] websocket stream %s: %s", chatID, err.Error())
			sendError(err)
		}
	}
}
