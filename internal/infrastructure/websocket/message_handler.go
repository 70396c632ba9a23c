package websocket

import (
	"context"
	"encoding/json"
	"time"

	"unimarket/internal/usecase"
	"unimarket/pkg/logger"
)

// Client-to-server message types
const (
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeJoinRoom    = "join_room"
	MessageTypeLeaveRoom   = "leave_room"
	MessageTypeSendMessage = "send_message"
	MessageTypeMarkRead    = "mark_read"
	MessageTypeError       = "error"
)

// WSMessage is the frame envelope in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type JoinRoomData struct {
	PeerID string `json:"peer_id"`
}

type LeaveRoomData struct {
	PeerID string `json:"peer_id"`
}

type SendMessageData struct {
	TempID     string `json:"temp_id,omitempty"`
	ReceiverID string `json:"receiver_id"`
	ProductID  string `json:"product_id"`
	Text       string `json:"text"`
}

type MarkReadData struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ProtocolHandler dispatches decoded frames from authenticated clients to
// the messaging use case. The durable write path is the same one the REST
// fallback uses, so both transports persist identical state.
type ProtocolHandler struct {
	manager   *Manager
	messaging *usecase.MessagingUseCase
}

func NewProtocolHandler(manager *Manager, messaging *usecase.MessagingUseCase) *ProtocolHandler {
	return &ProtocolHandler{
		manager:   manager,
		messaging: messaging,
	}
}

func (h *ProtocolHandler) HandleClientMessage(client *Client, payload []byte) {
	var frame WSMessage
	if err := json.Unmarshal(payload, &frame); err != nil {
		logger.Warn("WebSocket: malformed frame from user %s: %v", client.UserID, err)
		h.sendError(client, "Invalid message format")
		return
	}

	switch frame.Type {
	case MessageTypePing:
		h.handlePing(client)

	case MessageTypeJoinRoom:
		h.handleJoinRoom(client, frame.Data)

	case MessageTypeLeaveRoom:
		h.handleLeaveRoom(client, frame.Data)

	case MessageTypeSendMessage:
		h.handleSendMessage(client, frame.Data)

	case MessageTypeMarkRead:
		h.handleMarkRead(client, frame.Data)

	default:
		logger.Warn("WebSocket: unknown message type %q from user %s", frame.Type, client.UserID)
		h.sendError(client, "Unknown message type")
	}
}

func (h *ProtocolHandler) handlePing(client *Client) {
	h.send(client, WSMessage{
		Type:      MessageTypePong,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *ProtocolHandler) handleJoinRoom(client *Client, data json.RawMessage) {
	var join JoinRoomData
	if err := json.Unmarshal(data, &join); err != nil || join.PeerID == "" {
		h.sendError(client, "Invalid join_room data")
		return
	}

	room := h.messaging.RoomFor(client.UserID, join.PeerID)
	h.manager.JoinRoom(room, client)
	logger.Debug("WebSocket: user %s joined room %s", client.UserID, room)
}

func (h *ProtocolHandler) handleLeaveRoom(client *Client, data json.RawMessage) {
	var leave LeaveRoomData
	if err := json.Unmarshal(data, &leave); err != nil || leave.PeerID == "" {
		h.sendError(client, "Invalid leave_room data")
		return
	}

	room := h.messaging.RoomFor(client.UserID, leave.PeerID)
	h.manager.LeaveRoom(room, client)
	logger.Debug("WebSocket: user %s left room %s", client.UserID, room)
}

func (h *ProtocolHandler) handleSendMessage(client *Client, data json.RawMessage) {
	var send SendMessageData
	if err := json.Unmarshal(data, &send); err != nil {
		h.sendError(client, "Invalid send_message data")
		return
	}

	_, err := h.messaging.SendMessage(context.Background(), client.UserID, usecase.SendMessageInput{
		ReceiverID: send.ReceiverID,
		ProductID:  send.ProductID,
		Text:       send.Text,
		TempID:     send.TempID,
	})
	if err != nil {
		logger.Warn("WebSocket: send from user %s failed: %v", client.UserID, err)
		h.sendError(client, err.Error())
		return
	}
}

func (h *ProtocolHandler) handleMarkRead(client *Client, data json.RawMessage) {
	var read MarkReadData
	if err := json.Unmarshal(data, &read); err != nil || read.MessageID == "" {
		h.sendError(client, "Invalid mark_read data")
		return
	}

	if err := h.messaging.MarkMessageRead(context.Background(), client.UserID, read.MessageID, read.ConversationID); err != nil {
		logger.Warn("WebSocket: mark_read from user %s failed: %v", client.UserID, err)
		h.sendError(client, err.Error())
	}
}

func (h *ProtocolHandler) send(client *Client, frame WSMessage) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error("WebSocket: failed to marshal frame for user %s: %v", client.UserID, err)
		return
	}
	h.manager.deliver(client, payload)
}

func (h *ProtocolHandler) sendError(client *Client, message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	h.send(client, WSMessage{
		Type:      MessageTypeError,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
