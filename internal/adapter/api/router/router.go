package router

import (
	"github.com/labstack/echo/v4"

	"unimarket/internal/adapter/api/handler"
	"unimarket/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	conversationHandler *handler.ConversationHandler,
	reservationHandler *handler.ReservationHandler,
	wsHandler *handler.WebSocketHandler,
) {
	SetupConversationRouter(e, conversationHandler, authMiddleware)
	SetupReservationRouter(e, reservationHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}
