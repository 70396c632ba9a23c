package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"unimarket/internal/adapter/api/middleware"
	ws "unimarket/internal/infrastructure/websocket"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	protocol       *ws.ProtocolHandler
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, protocol *ws.ProtocolHandler, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		protocol:       protocol,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket authenticates via the token query parameter, since
// browsers cannot attach headers to the upgrade request, then hands the
// connection to the manager.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication token is required", nil)
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager, h.protocol)
	go client.WritePump()

	logger.Debug("WebSocket connected for user %s", userID)

	return nil
}
