package handler

import (
	"github.com/labstack/echo/v4"

	"unimarket/internal/usecase"
	"unimarket/pkg/response"
	"unimarket/pkg/utils"
)

type ConversationHandler struct {
	messagingUseCase *usecase.MessagingUseCase
}

func NewConversationHandler(messagingUseCase *usecase.MessagingUseCase) *ConversationHandler {
	return &ConversationHandler{
		messagingUseCase: messagingUseCase,
	}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	ProductID  string `json:"product_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
	TempID     string `json:"temp_id,omitempty"`
}

type markReadRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

// ListConversations returns the authenticated user's inbox, most recently
// active first, with unread counts attached.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	summaries, err := h.messagingUseCase.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, summaries)
}

func (h *ConversationHandler) GetMessages(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.Get("uid").(string)

	params := utils.GetPaginationParams(c)

	messages, total, err := h.messagingUseCase.GetMessages(c.Request().Context(), userID, conversationID, params.Limit, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, params.Limit, params.Offset)
}

// SendMessage is the HTTP fallback for clients without a live websocket.
// It persists through the same path as the realtime transport.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.messagingUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ReceiverID: req.ReceiverID,
		ProductID:  req.ProductID,
		Text:       req.Text,
		TempID:     req.TempID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ConversationHandler) MarkMessageRead(c echo.Context) error {
	messageID := c.Param("id")
	userID := c.Get("uid").(string)

	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.messagingUseCase.MarkMessageRead(c.Request().Context(), userID, messageID, req.ConversationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}
