package changefeed

import (
	"encoding/json"
	"net/http"
	"strings"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const clientBuffer = 256

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler exposes the hub to remote presentation clients. A client
// subscribes with {"action":"subscribe","topics":["patients"]} (or the
// "topics" query parameter) and receives every Event on those topics.
type WebSocketHandler struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewWebSocketHandler creates a handler bound to hub.
func NewWebSocketHandler(hub *Hub, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint on g.
func (wsh *WebSocketHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the connection and starts the read and write pumps.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var topics []string
	if raw := c.QueryParam("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	sub := wsh.hub.Listen(clientBuffer, topics...)
	wsh.logger.Debug().Str("subscriber", sub.ID).Strs("topics", topics).Msg("websocket connected")

	go wsh.writePump(sub, ws)
	go wsh.readPump(sub, ws)

	return nil
}

func (wsh *WebSocketHandler) readPump(sub *Subscriber, ws *gorillawebsocket.Conn) {
	defer func() {
		sub.Close()
		ws.Close()
		wsh.logger.Debug().Str("subscriber", sub.ID).Msg("websocket disconnected")
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(sub, msg)
	}
}

func (wsh *WebSocketHandler) writePump(sub *Subscriber, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for event := range sub.Send {
		data, err := json.Marshal(event)
		if err != nil {
			wsh.logger.Error().Err(err).Msg("marshal change event")
			continue
		}
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			return
		}
	}
}
