package repository

import (
	"context"

	"unimarket/internal/domain/entity"
)

type ConversationRepository interface {
	// Create persists a new conversation keyed by its participant pair.
	// Returns a CONFLICT error when a conversation for the pair already
	// exists; callers recover by re-fetching.
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	GetByPair(ctx context.Context, key entity.RoomKey) (*entity.Conversation, error)
	ListByUserID(ctx context.Context, userID string) ([]*entity.Conversation, error)
	Update(ctx context.Context, conversation *entity.Conversation) error

	// Message log methods
	CreateMessage(ctx context.Context, message *entity.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkMessageRead is idempotent; an unknown message ID is treated as
	// success so read receipts racing the message write never error.
	MarkMessageRead(ctx context.Context, messageID string) error
	CountUnread(ctx context.Context, conversationID, userID string) (int, error)
}
