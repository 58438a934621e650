package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkup-social/chat-platform/internal/model"
)

// ConversationStore persists direct and group conversations and their messages.
//
// Every mutation of a conversation starts by bumping the conversation row's
// version inside a transaction. That write takes the row lock (MySQL) or the
// database write lock (SQLite), so appends and membership changes to the same
// conversation commit one at a time.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a new conversation store.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FindDirect returns the direct conversation between a and b, in either order.
// It returns model.ErrConversationNotFound when none exists.
func (s *ConversationStore) FindDirect(ctx context.Context, a, b string) (*model.Conversation, error) {
	var rec conversationRecord
	err := s.db.WithContext(ctx).
		Where("direct_key = ? AND is_group = ?", model.DirectKey(a, b), false).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}
	return s.load(s.db.WithContext(ctx), &rec)
}

// CreateDirect creates the direct conversation between a and b. It fails with
// model.ErrDirectConversationExists when one already exists for the pair.
func (s *ConversationStore) CreateDirect(ctx context.Context, a, b string) (*model.Conversation, error) {
	if a == "" || b == "" {
		return nil, model.ErrInvalidPayload
	}
	if a == b {
		return nil, model.ErrSelfConversation
	}

	now := time.Now().UTC()
	key := model.DirectKey(a, b)
	rec := conversationRecord{
		ID:        newID(),
		IsGroup:   false,
		DirectKey: &key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Create([]participantRecord{
			{ConversationID: rec.ID, UserID: a, Position: 0, JoinedAt: now},
			{ConversationID: rec.ID, UserID: b, Position: 1, JoinedAt: now},
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, model.ErrDirectConversationExists
		}
		return nil, fmt.Errorf("failed to create direct conversation: %w", err)
	}

	return rec.toModel([]string{a, b}), nil
}

// FindOrCreateDirect returns the direct conversation between a and b, creating
// it when absent. A concurrent creation for the same pair is resolved by
// returning the conversation that won. created reports whether this call
// created it.
func (s *ConversationStore) FindOrCreateDirect(ctx context.Context, a, b string) (conv *model.Conversation, created bool, err error) {
	conv, err = s.FindDirect(ctx, a, b)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, model.ErrConversationNotFound) {
		return nil, false, err
	}

	conv, err = s.CreateDirect(ctx, a, b)
	if err == nil {
		return conv, true, nil
	}
	if errors.Is(err, model.ErrSelfConversation) || errors.Is(err, model.ErrInvalidPayload) {
		return nil, false, err
	}

	// Lost the race, or the driver did not translate the unique violation.
	winner, findErr := s.FindDirect(ctx, a, b)
	if findErr != nil {
		return nil, false, err
	}
	return winner, false, nil
}

// CreateGroup creates a named group with the creator and the given members.
// Duplicate ids are collapsed; fewer than model.MinGroupSize distinct users fails
// with model.ErrInvalidGroupSize.
func (s *ConversationStore) CreateGroup(ctx context.Context, creatorID string, memberIDs []string, name string) (*model.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidGroupName
	}
	members := model.GroupMembers(creatorID, memberIDs)
	if len(members) < model.MinGroupSize {
		return nil, model.ErrInvalidGroupSize
	}

	now := time.Now().UTC()
	rec := conversationRecord{
		ID:        newID(),
		IsGroup:   true,
		GroupName: name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := make([]participantRecord, len(members))
	for i, id := range members {
		participants[i] = participantRecord{ConversationID: rec.ID, UserID: id, Position: i, JoinedAt: now}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Create(participants).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return rec.toModel(members), nil
}

// AddMember appends newMemberID to a group. The requester must be a participant.
func (s *ConversationStore) AddMember(ctx context.Context, conversationID, requesterID, newMemberID string) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, participants, err := lockGroup(tx, conversationID, requesterID)
		if err != nil {
			return err
		}
		if contains(participants, newMemberID) {
			return model.ErrAlreadyMember
		}

		var maxPos int
		if err := tx.Model(&participantRecord{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxPos).Error; err != nil {
			return err
		}
		if err := tx.Create(&participantRecord{
			ConversationID: conversationID,
			UserID:         newMemberID,
			Position:       maxPos + 1,
			JoinedAt:       time.Now().UTC(),
		}).Error; err != nil {
			return err
		}

		out = rec.toModel(append(participants, newMemberID))
		return nil
	})
	if err != nil {
		return nil, wrapTx("add member", err)
	}
	return out, nil
}

// RemoveMember removes targetID from a group. The requester must be a
// participant. A removal that would leave the group empty is rejected.
func (s *ConversationStore) RemoveMember(ctx context.Context, conversationID, requesterID, targetID string) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, participants, err := lockGroup(tx, conversationID, requesterID)
		if err != nil {
			return err
		}
		if !contains(participants, targetID) {
			return model.ErrNotMember
		}
		if len(participants) <= 1 {
			return model.ErrInvalidGroupSize
		}

		if err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, targetID).
			Delete(&participantRecord{}).Error; err != nil {
			return err
		}

		remaining := make([]string, 0, len(participants)-1)
		for _, p := range participants {
			if p != targetID {
				remaining = append(remaining, p)
			}
		}
		out = rec.toModel(remaining)
		return nil
	})
	if err != nil {
		return nil, wrapTx("remove member", err)
	}
	return out, nil
}

// Rename sets a group's name. The requester must be a participant.
func (s *ConversationStore) Rename(ctx context.Context, conversationID, requesterID, newName string) (*model.Conversation, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, model.ErrInvalidGroupName
	}

	var out *model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, participants, err := lockGroup(tx, conversationID, requesterID)
		if err != nil {
			return err
		}
		if err := tx.Model(&conversationRecord{}).
			Where("id = ?", conversationID).
			Update("group_name", newName).Error; err != nil {
			return err
		}
		rec.GroupName = newName
		out = rec.toModel(participants)
		return nil
	})
	if err != nil {
		return nil, wrapTx("rename group", err)
	}
	return out, nil
}

// AppendMessage persists a message from senderID, who must currently be a
// participant, and makes it the conversation's last message. It returns the
// message together with the conversation as of the commit, whose participant
// list is the delivery snapshot.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, *model.Conversation, error) {
	var (
		msg  *model.Message
		conv *model.Conversation
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockConversation(tx, conversationID, map[string]any{
			"message_count": gorm.Expr("message_count + 1"),
		})
		if err != nil {
			return err
		}

		participants, err := participantIDs(tx, conversationID)
		if err != nil {
			return err
		}
		if !contains(participants, senderID) {
			return model.ErrNotAMember
		}

		now := time.Now().UTC()
		m := messageRecord{
			ID:             newID(),
			ConversationID: conversationID,
			Seq:            rec.MessageCount,
			SenderID:       senderID,
			Content:        content,
			CreatedAt:      now,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		if err := tx.Create(&receiptRecord{MessageID: m.ID, UserID: senderID, SeenAt: now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&conversationRecord{}).
			Where("id = ?", conversationID).
			Update("last_message_id", m.ID).Error; err != nil {
			return err
		}

		rec.LastMessageID = &m.ID
		msg = m.toModel([]string{senderID})
		conv = rec.toModel(participants)
		conv.LastMessage = msg
		return nil
	})
	if err != nil {
		return nil, nil, wrapTx("append message", err)
	}
	return msg, conv, nil
}

// GetConversation returns a conversation with its participants and last message.
func (s *ConversationStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var rec conversationRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return s.load(s.db.WithContext(ctx), &rec)
}

// ListGroups returns the groups userID participates in, most recently active first.
func (s *ConversationStore) ListGroups(ctx context.Context, userID string) ([]model.Conversation, error) {
	db := s.db.WithContext(ctx)

	var recs []conversationRecord
	err := db.Model(&conversationRecord{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("conversations.is_group = ? AND cp.user_id = ?", true, userID).
		Order("conversations.updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	out := make([]model.Conversation, 0, len(recs))
	for i := range recs {
		conv, err := s.load(db, &recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}

// ListMessages returns up to limit messages with a sequence greater than
// afterSeq, in append order.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]model.Message, error) {
	db := s.db.WithContext(ctx)

	var recs []messageRecord
	if err := db.Where("conversation_id = ? AND seq > ?", conversationID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(recs) == 0 {
		return []model.Message{}, nil
	}

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	seen, err := receiptsFor(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.Message, len(recs))
	for i := range recs {
		out[i] = *recs[i].toModel(seen[recs[i].ID])
	}
	return out, nil
}

func (s *ConversationStore) load(db *gorm.DB, rec *conversationRecord) (*model.Conversation, error) {
	participants, err := participantIDs(db, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	conv := rec.toModel(participants)

	if rec.LastMessageID != nil {
		var m messageRecord
		if err := db.First(&m, "id = ?", *rec.LastMessageID).Error; err != nil {
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		seen, err := receiptsFor(db, []string{m.ID})
		if err != nil {
			return nil, err
		}
		conv.LastMessage = m.toModel(seen[m.ID])
	}
	return conv, nil
}

// lockConversation bumps the conversation version (plus any extra column
// updates) and returns the row as updated.
func lockConversation(tx *gorm.DB, conversationID string, extra map[string]any) (*conversationRecord, error) {
	updates := map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(&conversationRecord{}).Where("id = ?", conversationID).Updates(updates).Error; err != nil {
		return nil, err
	}

	var rec conversationRecord
	if err := tx.First(&rec, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrConversationNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// lockGroup locks a group conversation and checks that requesterID is a participant.
func lockGroup(tx *gorm.DB, conversationID, requesterID string) (*conversationRecord, []string, error) {
	rec, err := lockConversation(tx, conversationID, nil)
	if err != nil {
		return nil, nil, err
	}
	if !rec.IsGroup {
		return nil, nil, model.ErrConversationNotFound
	}
	participants, err := participantIDs(tx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !contains(participants, requesterID) {
		return nil, nil, model.ErrNotAMember
	}
	return rec, participants, nil
}

func participantIDs(db *gorm.DB, conversationID string) ([]string, error) {
	var ids []string
	err := db.Model(&participantRecord{}).
		Where("conversation_id = ?", conversationID).
		Order("position ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func receiptsFor(db *gorm.DB, messageIDs []string) (map[string][]string, error) {
	var receipts []receiptRecord
	if err := db.Where("message_id IN ?", messageIDs).
		Order("seen_at ASC").
		Find(&receipts).Error; err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	out := make(map[string][]string, len(messageIDs))
	for _, r := range receipts {
		out[r.MessageID] = append(out[r.MessageID], r.UserID)
	}
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// wrapTx passes domain errors through untouched and wraps infrastructure errors.
func wrapTx(op string, err error) error {
	if model.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
