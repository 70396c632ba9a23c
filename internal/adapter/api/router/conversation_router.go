package router

import (
	"github.com/labstack/echo/v4"

	"unimarket/internal/adapter/api/handler"
	"unimarket/internal/adapter/api/middleware"
)

func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware) {
	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.GET("", conversationHandler.ListConversations)
	conversations.GET("/:id/messages", conversationHandler.GetMessages)

	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)

	// HTTP fallback path for sending; the websocket transport is primary
	messages.POST("", conversationHandler.SendMessage)
	messages.PUT("/:id/read", conversationHandler.MarkMessageRead)
}
