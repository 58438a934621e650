package model

import (
	"encoding/json"
	"time"
)

// Inbound gateway events.
const (
	EventSendMessage      = "sendMessage"
	EventSendGroupMessage = "sendGroupMessage"
	EventTyping           = "typing"
	EventJoinGroup        = "joinGroup"
)

// Outbound gateway events.
const (
	EventConnected   = "connected"
	EventMessageSent = "messageSent"
	EventNewMessage  = "newMessage"
	EventCustomError = "customError"
)

// Frame is the envelope of every WebSocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the data of a sendMessage event.
type SendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// SendGroupMessagePayload is the data of a sendGroupMessage event.
type SendGroupMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// JoinGroupPayload is the data of a joinGroup event.
type JoinGroupPayload struct {
	ConversationID string `json:"conversationId"`
}

// NoticeEvent carries a human-readable message (connected, customError).
type NoticeEvent struct {
	Message string `json:"message"`
}

// ChatMessageEvent is the data of messageSent and newMessage.
type ChatMessageEvent struct {
	Message *Message `json:"message"`
	ChatID  string   `json:"chatId"`
}

// TypingEvent is the data of an outbound typing notification.
type TypingEvent struct {
	From string `json:"from"`
}

// ConversationEventType is the type of a conversation lifecycle event.
type ConversationEventType string

const (
	ConversationEventCreated       ConversationEventType = "created"
	ConversationEventMemberAdded   ConversationEventType = "member_added"
	ConversationEventMemberRemoved ConversationEventType = "member_removed"
	ConversationEventRenamed       ConversationEventType = "renamed"
)

// ConversationEvent records a change to a conversation in the event log.
type ConversationEvent struct {
	ID             string                `json:"id"`
	ConversationID string                `json:"conversationId"`
	Type           ConversationEventType `json:"type"`
	ActorID        string                `json:"actorId"`
	SubjectID      string                `json:"subjectId,omitempty"`
	Metadata       map[string]string     `json:"metadata,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// HeartbeatEvent keeps an SSE stream alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ReplayCompleteEvent marks the end of history replay on an SSE stream.
type ReplayCompleteEvent struct {
	LastSequence int64 `json:"lastSequence"`
	MessageCount int   `json:"messageCount"`
}
