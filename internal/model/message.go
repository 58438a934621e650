package model

import (
	"time"
)

// Message is a single chat message. It belongs to exactly one conversation.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Sender         *UserSummary `json:"sender,omitempty"`
	Content        string       `json:"content"`
	SeenBy         []string     `json:"seenBy"`
	Sequence       int64        `json:"sequence"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Delivery is the outcome of a successful send: the persisted message and the
// users whose live connections should receive it.
type Delivery struct {
	Message        *Message
	ConversationID string
	Recipients     []string
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"hasMore"`
	LastSequence int64     `json:"lastSequence"`
}
