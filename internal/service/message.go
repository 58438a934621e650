package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/pkg/logger"
	"github.com/linkup-social/chat-platform/pkg/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ConversationStore is the persistence the services need.
type ConversationStore interface {
	FindOrCreateDirect(ctx context.Context, a, b string) (*model.Conversation, bool, error)
	CreateGroup(ctx context.Context, creatorID string, memberIDs []string, name string) (*model.Conversation, error)
	AddMember(ctx context.Context, conversationID, requesterID, newMemberID string) (*model.Conversation, error)
	RemoveMember(ctx context.Context, conversationID, requesterID, targetID string) (*model.Conversation, error)
	Rename(ctx context.Context, conversationID, requesterID, newName string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, *model.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	ListGroups(ctx context.Context, userID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]model.Message, error)
}

// UserDirectory answers user and relationship lookups.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

var tracer = otel.Tracer("github.com/linkup-social/chat-platform/internal/service")

// ChatService persists chat messages and resolves who they are delivered to.
// It returns typed errors only and knows nothing about transports.
type ChatService struct {
	store  ConversationStore
	users  UserDirectory
	events eventLog
	logger *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(store ConversationStore, users UserDirectory, publisher EventPublisher, log *logger.Logger) *ChatService {
	log = log.Named("chat")
	return &ChatService{
		store:  store,
		users:  users,
		events: eventLog{publisher: publisher, logger: log},
		logger: log,
	}
}

// SendDirect sends content from senderID to recipientID, creating their direct
// conversation on first contact. Friendship and blocks are checked on every send.
func (s *ChatService) SendDirect(ctx context.Context, senderID, recipientID, content string) (_ *model.Delivery, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.SendDirect", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("recipient_id", recipientID),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(content) == "" {
		return nil, model.ErrEmptyMessage
	}
	if recipientID == "" {
		return nil, model.ErrInvalidPayload
	}
	if recipientID == senderID {
		return nil, model.ErrSelfConversation
	}

	if _, err := s.users.FindUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrRecipientNotFound
		}
		return nil, err
	}
	if err := s.authorizeDirect(ctx, senderID, recipientID); err != nil {
		return nil, err
	}

	conv, created, err := s.store.FindOrCreateDirect(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if created {
		s.events.event(ctx, conv.ID, model.ConversationEventCreated, senderID, recipientID, nil)
	}

	msg, after, err := s.store.AppendMessage(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation_id", conv.ID))

	return s.deliver(ctx, "direct", msg, after), nil
}

// SendGroup sends content from senderID to a group. The sender must be a
// current participant; the recipients are the other participants at commit.
func (s *ChatService) SendGroup(ctx context.Context, senderID, conversationID, content string) (_ *model.Delivery, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.SendGroup", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("conversation_id", conversationID),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(content) == "" {
		return nil, model.ErrEmptyMessage
	}
	if conversationID == "" {
		return nil, model.ErrInvalidPayload
	}

	// A direct conversation must go through SendDirect so the friendship
	// check applies. Conversation kind never changes after creation.
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, model.ErrConversationNotFound
	}

	msg, after, err := s.store.AppendMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	return s.deliver(ctx, "group", msg, after), nil
}

func (s *ChatService) deliver(ctx context.Context, kind string, msg *model.Message, conv *model.Conversation) *model.Delivery {
	s.attachSenders(ctx, []*model.Message{msg})
	s.events.message(ctx, msg)
	metrics.MessagesTotal.WithLabelValues(kind).Inc()

	return &model.Delivery{
		Message:        msg,
		ConversationID: conv.ID,
		Recipients:     conv.Others(msg.SenderID),
	}
}

// OpenDirect returns the direct conversation between userID and otherID,
// creating it when absent. created reports whether it was created.
func (s *ChatService) OpenDirect(ctx context.Context, userID, otherID string) (_ *model.Conversation, created bool, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.OpenDirect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("other_id", otherID),
	))
	defer func() { endSpan(span, err) }()

	if otherID == "" {
		return nil, false, model.ErrInvalidPayload
	}
	if otherID == userID {
		return nil, false, model.ErrSelfConversation
	}
	if _, err := s.users.FindUserByID(ctx, otherID); err != nil {
		return nil, false, err
	}
	if err := s.authorizeDirect(ctx, userID, otherID); err != nil {
		return nil, false, err
	}

	conv, created, err := s.store.FindOrCreateDirect(ctx, userID, otherID)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.events.event(ctx, conv.ID, model.ConversationEventCreated, userID, otherID, nil)
		s.logger.Info("direct conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", userID),
		)
	}
	if conv.LastMessage != nil {
		s.attachSenders(ctx, []*model.Message{conv.LastMessage})
	}
	return conv, created, nil
}

// JoinGroup checks that userID is a participant of the group. Delivery is by
// user, so joining changes no routing state.
func (s *ChatService) JoinGroup(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, model.ErrInvalidPayload
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, model.ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, model.ErrNotAMember
	}
	return conv, nil
}

// Conversation returns a conversation userID participates in. Conversations the
// user is not part of are reported as not found.
func (s *ChatService) Conversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, model.ErrInvalidPayload
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, model.ErrConversationNotFound
	}
	return conv, nil
}

// ListMessages returns a page of a conversation's history to one of its
// participants, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID string, afterSeq int64, limit int) (_ *model.ListMessagesResponse, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.ListMessages", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer func() { endSpan(span, err) }()

	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if afterSeq < 0 {
		afterSeq = 0
	}

	msgs, err := s.store.ListMessages(ctx, conversationID, afterSeq, limit+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	ptrs := make([]*model.Message, len(msgs))
	for i := range msgs {
		ptrs[i] = &msgs[i]
	}
	s.attachSenders(ctx, ptrs)

	resp := &model.ListMessagesResponse{
		Messages:     msgs,
		HasMore:      hasMore,
		LastSequence: afterSeq,
	}
	if len(msgs) > 0 {
		resp.LastSequence = msgs[len(msgs)-1].Sequence
	}
	return resp, nil
}

func (s *ChatService) authorizeDirect(ctx context.Context, a, b string) error {
	blocked, err := s.users.IsBlocked(ctx, a, b)
	if err != nil {
		return err
	}
	if blocked {
		return model.ErrBlocked
	}
	friends, err := s.users.AreFriends(ctx, a, b)
	if err != nil {
		return err
	}
	if !friends {
		return model.ErrNotFriends
	}
	return nil
}

// attachSenders fills in sender summaries. Lookup failures leave them empty.
func (s *ChatService) attachSenders(ctx context.Context, msgs []*model.Message) {
	if len(msgs) == 0 {
		return
	}
	if len(msgs) == 1 {
		u, err := s.users.FindUserByID(ctx, msgs[0].SenderID)
		if err != nil {
			s.logger.Warn("failed to resolve sender", zap.String("sender_id", msgs[0].SenderID), zap.Error(err))
			return
		}
		msgs[0].Sender = u.Summary()
		return
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	users, err := s.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve senders", zap.Error(err))
		return
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, m := range msgs {
		if u, ok := byID[m.SenderID]; ok {
			m.Sender = u.Summary()
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
