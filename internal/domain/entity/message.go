package entity

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	Text           string    `json:"text" firestore:"text"`
	Type           string    `json:"type" firestore:"type"`
	ProductID      string    `json:"product_id,omitempty" firestore:"productId,omitempty"` // product this message concretely refers to
	Read           bool      `json:"read" firestore:"read"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}
