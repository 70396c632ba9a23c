package usecase

import (
	"context"
	"encoding/json"

	"unimarket/internal/domain/entity"
	"unimarket/internal/domain/repository"
	"unimarket/internal/infrastructure/ratelimit"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

// RealtimeBroadcaster is the push side of the realtime transport. The
// websocket manager satisfies it; tests substitute a fake.
type RealtimeBroadcaster interface {
	BroadcastToRoom(room string, payload []byte, excludeUserID string)
	SendToUser(userID string, payload []byte) bool
	IsUserInRoom(room, userID string) bool
}

type MessagingUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	productRepo      repository.ProductRepository
	broadcaster      RealtimeBroadcaster
	rateLimiter      *ratelimit.RateLimiter
}

func NewMessagingUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	broadcaster RealtimeBroadcaster,
) *MessagingUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &MessagingUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		productRepo:      productRepo,
		broadcaster:      broadcaster,
		rateLimiter:      rateLimiter,
	}
}

type SendMessageInput struct {
	ReceiverID string
	ProductID  string
	Text       string
	// TempID is a client-supplied correlation id echoed back in the
	// realtime event so an optimistically displayed message can be
	// deduplicated against its server echo.
	TempID string
}

type MessageResponse struct {
	*entity.Message
	TempID string       `json:"temp_id,omitempty"`
	Sender *entity.User `json:"sender,omitempty"`
}

type ConversationSummary struct {
	*entity.Conversation
	OtherUser   *entity.User    `json:"other_user,omitempty"`
	Product     *entity.Product `json:"product,omitempty"`
	UnreadCount int             `json:"unread_count"`
}

// RoomFor returns the realtime room name for a participant pair. It equals
// the conversation document ID, so both sides compute it without a lookup.
func (uc *MessagingUseCase) RoomFor(userA, userB string) string {
	return entity.NewRoomKey(userA, userB).PairID()
}

// FindOrCreateConversation returns the single conversation for the pair,
// creating it when absent. Two concurrent first-senders race on the same
// document key; the loser recovers by re-fetching the winner's record.
func (uc *MessagingUseCase) FindOrCreateConversation(ctx context.Context, userA, userB, productID string) (*entity.Conversation, error) {
	key := entity.NewRoomKey(userA, userB)

	conversation, err := uc.conversationRepo.GetByPair(ctx, key)
	if err == nil {
		if productID != "" && conversation.ProductID != productID {
			// The pair reuses one conversation across products; keep the
			// latest product as its context.
			conversation.ProductID = productID
			if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
				logger.Warn("Failed to update conversation %s product context: %v", conversation.ID, err)
			}
		}
		return conversation, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	low, high := key.Users()
	conversation = &entity.Conversation{
		ID:           key.PairID(),
		Participants: []string{low, high},
		ProductID:    productID,
	}

	err = uc.conversationRepo.Create(ctx, conversation)
	if err == nil {
		return conversation, nil
	}
	if errors.Is(err, "CONFLICT") {
		// Lost the creation race; the other participant's record wins.
		return uc.conversationRepo.GetByPair(ctx, key)
	}
	return nil, err
}

// SendMessage performs the durable write shared by the realtime and
// fallback paths, then pushes the result to connected participants.
func (uc *MessagingUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, wait := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, wait)
		return nil, errors.TooManyRequests("You are sending messages too quickly")
	}

	if input.Text == "" {
		return nil, errors.Validation("text is required", nil)
	}
	if input.ReceiverID == "" {
		return nil, errors.Validation("receiver_id is required", nil)
	}
	if input.ProductID == "" {
		return nil, errors.Validation("product_id is required", nil)
	}
	if input.ReceiverID == senderID {
		return nil, errors.BadRequest("You cannot message yourself", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, errors.NotFound("Sender", err)
	}
	if _, err := uc.userRepo.GetByID(ctx, input.ReceiverID); err != nil {
		return nil, errors.NotFound("Receiver", err)
	}

	return uc.append(ctx, sender, input, entity.MessageTypeText)
}

// SendAutomatedMessage is the reservation state machine's entry point. It
// performs the same durable write as SendMessage without rate limiting;
// the sender is the acting user, not a synthetic system account.
func (uc *MessagingUseCase) SendAutomatedMessage(ctx context.Context, senderID, receiverID, productID, text string) (*MessageResponse, error) {
	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, errors.NotFound("Sender", err)
	}

	return uc.append(ctx, sender, SendMessageInput{
		ReceiverID: receiverID,
		ProductID:  productID,
		Text:       text,
	}, entity.MessageTypeSystem)
}

func (uc *MessagingUseCase) append(ctx context.Context, sender *entity.User, input SendMessageInput, messageType string) (*MessageResponse, error) {
	conversation, err := uc.FindOrCreateConversation(ctx, sender.ID, input.ReceiverID, input.ProductID)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ConversationID: conversation.ID,
		SenderID:       sender.ID,
		Text:           input.Text,
		Type:           messageType,
		ProductID:      input.ProductID,
	}

	if err := uc.conversationRepo.CreateMessage(ctx, message); err != nil {
		logger.Error("Failed to create message in conversation %s: %v", conversation.ID, err)
		return nil, err
	}

	conversation.LastMessage = message.Text
	conversation.LastMessageAt = message.CreatedAt
	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		logger.Warn("Failed to update conversation %s with last message: %v", conversation.ID, err)
	}

	uc.pushMessage(conversation, message, sender, input.TempID, input.ReceiverID)

	return &MessageResponse{
		Message: message,
		TempID:  input.TempID,
		Sender:  sender,
	}, nil
}

// pushMessage fans the stored message out over the realtime transport:
// once to the room, and directly to the receiver's connections when they
// are online but have not opened this conversation.
func (uc *MessagingUseCase) pushMessage(conversation *entity.Conversation, message *entity.Message, sender *entity.User, tempID, receiverID string) {
	event := map[string]interface{}{
		"type":            "message_received",
		"conversation_id": conversation.ID,
		"message":         message,
		"sender":          sender,
	}
	if tempID != "" {
		event["temp_id"] = tempID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal message event for conversation %s: %v", conversation.ID, err)
		return
	}

	room := conversation.ID
	uc.broadcaster.BroadcastToRoom(room, payload, sender.ID)

	if !uc.broadcaster.IsUserInRoom(room, receiverID) {
		uc.broadcaster.SendToUser(receiverID, payload)
	}
}

// ListConversations projects the per-user inbox view: conversations in
// most-recently-active order, each with the counterparty profile, product
// label, last message, and unread count.
func (uc *MessagingUseCase) ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	conversations, err := uc.conversationRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var summaries []*ConversationSummary
	for _, conversation := range conversations {
		summary := &ConversationSummary{Conversation: conversation}

		otherID := conversation.OtherParticipant(userID)
		if otherID != "" {
			if other, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
				summary.OtherUser = other
			} else {
				logger.Warn("Participant %s not found for conversation %s: %v", otherID, conversation.ID, err)
			}
		}

		if conversation.ProductID != "" {
			if product, err := uc.productRepo.GetByID(ctx, conversation.ProductID); err == nil {
				summary.Product = product
			} else {
				logger.Warn("Product %s not found for conversation %s: %v", conversation.ProductID, conversation.ID, err)
			}
		}

		unread, err := uc.conversationRepo.CountUnread(ctx, conversation.ID, userID)
		if err != nil {
			logger.Warn("Failed to count unread for conversation %s: %v", conversation.ID, err)
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// GetMessages returns the conversation's messages in creation order with
// sender profiles attached.
func (uc *MessagingUseCase) GetMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*MessageResponse, int64, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}

	if !conversation.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("User is not a participant in this conversation", nil)
	}

	messages, total, err := uc.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	senders := make(map[string]*entity.User)
	var responses []*MessageResponse
	for _, message := range messages {
		response := &MessageResponse{Message: message}

		sender, ok := senders[message.SenderID]
		if !ok {
			sender, err = uc.userRepo.GetByID(ctx, message.SenderID)
			if err != nil {
				logger.Warn("Sender %s not found for message %s: %v", message.SenderID, message.ID, err)
			}
			senders[message.SenderID] = sender
		}
		response.Sender = sender

		responses = append(responses, response)
	}

	return responses, total, nil
}

// MarkMessageRead flips the read flag and emits a read receipt to the
// conversation's room. It is idempotent and treats an unknown message ID
// as success.
func (uc *MessagingUseCase) MarkMessageRead(ctx context.Context, readerID, messageID, conversationID string) error {
	if err := uc.conversationRepo.MarkMessageRead(ctx, messageID); err != nil {
		return err
	}

	if conversationID != "" {
		event := map[string]interface{}{
			"type":            "read_receipt",
			"conversation_id": conversationID,
			"message_id":      messageID,
			"reader_id":       readerID,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to marshal read receipt for message %s: %v", messageID, err)
			return nil
		}
		uc.broadcaster.BroadcastToRoom(conversationID, payload, readerID)
	}

	return nil
}
