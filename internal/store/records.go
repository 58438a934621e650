package store

import (
	"time"

	"github.com/linkup-social/chat-platform/internal/model"
)

type conversationRecord struct {
	ID            string  `gorm:"primaryKey;size:36"`
	IsGroup       bool    `gorm:"not null;index"`
	GroupName     string  `gorm:"size:128"`
	DirectKey     *string `gorm:"size:160;uniqueIndex"`
	LastMessageID *string `gorm:"size:36"`
	MessageCount  int64   `gorm:"not null;default:0"`
	Version       int64   `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (conversationRecord) TableName() string { return "conversations" }

type participantRecord struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"primaryKey;size:64;index"`
	Position       int    `gorm:"not null"`
	JoinedAt       time.Time
}

func (participantRecord) TableName() string { return "conversation_participants" }

type messageRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"size:36;not null;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Seq            int64  `gorm:"not null;uniqueIndex:idx_messages_conversation_seq,priority:2"`
	SenderID       string `gorm:"size:64;not null"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (messageRecord) TableName() string { return "messages" }

type receiptRecord struct {
	MessageID string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:64"`
	SeenAt    time.Time
}

func (receiptRecord) TableName() string { return "message_receipts" }

type userRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	FirstName    string `gorm:"size:64;not null"`
	LastName     string `gorm:"size:64"`
	ProfileImage string `gorm:"size:512"`
	IsVerified   bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

// Friendship statuses.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipRejected = "rejected"
)

type friendshipRecord struct {
	RequesterID string `gorm:"primaryKey;size:64"`
	AddresseeID string `gorm:"primaryKey;size:64;index"`
	Status      string `gorm:"size:16;not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (friendshipRecord) TableName() string { return "friendships" }

type blockRecord struct {
	BlockerID string `gorm:"primaryKey;size:64"`
	BlockedID string `gorm:"primaryKey;size:64;index"`
	CreatedAt time.Time
}

func (blockRecord) TableName() string { return "blocks" }

func (r *userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		ProfileImage: r.ProfileImage,
		IsVerified:   r.IsVerified,
	}
}

func (r *messageRecord) toModel(seenBy []string) *model.Message {
	if seenBy == nil {
		seenBy = []string{}
	}
	return &model.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Content:        r.Content,
		SeenBy:         seenBy,
		Sequence:       r.Seq,
		CreatedAt:      r.CreatedAt,
	}
}

func (r *conversationRecord) toModel(participants []string) *model.Conversation {
	conv := &model.Conversation{
		ID:           r.ID,
		IsGroup:      r.IsGroup,
		GroupName:    r.GroupName,
		Participants: participants,
		MessageCount: r.MessageCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastMessageID != nil {
		conv.LastMessageID = *r.LastMessageID
	}
	return conv
}
