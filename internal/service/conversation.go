package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// GroupService handles group conversation management.
//
// Every participant may add, remove and rename; there is no owner role.
type GroupService struct {
	store  ConversationStore
	users  UserDirectory
	events eventLog
	logger *logger.Logger
}

// NewGroupService creates a new group service.
func NewGroupService(store ConversationStore, users UserDirectory, publisher EventPublisher, log *logger.Logger) *GroupService {
	log = log.Named("groups")
	return &GroupService{
		store:  store,
		users:  users,
		events: eventLog{publisher: publisher, logger: log},
		logger: log,
	}
}

// Create creates a group of creatorID and the requested participants, all of
// whom must exist.
func (s *GroupService) Create(ctx context.Context, creatorID string, req *model.CreateGroupRequest) (_ *model.Conversation, err error) {
	ctx, span := tracer.Start(ctx, "GroupService.Create", trace.WithAttributes(
		attribute.String("creator_id", creatorID),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(req.GroupName) == "" {
		return nil, model.ErrInvalidGroupName
	}
	members := model.GroupMembers(creatorID, req.Participants)
	if len(members) < model.MinGroupSize {
		return nil, model.ErrInvalidGroupSize
	}

	found, err := s.users.FindUsersByIDs(ctx, members)
	if err != nil {
		return nil, err
	}
	if len(found) != len(members) {
		return nil, model.ErrUserNotFound
	}

	conv, err := s.store.CreateGroup(ctx, creatorID, members, req.GroupName)
	if err != nil {
		return nil, err
	}

	s.events.event(ctx, conv.ID, model.ConversationEventCreated, creatorID, "", map[string]string{
		"group_name": conv.GroupName,
	})
	s.logger.Info("group created",
		zap.String("conversation_id", conv.ID),
		zap.String("creator_id", creatorID),
		zap.Int("members", len(conv.Participants)),
	)
	return conv, nil
}

// List returns the groups userID participates in.
func (s *GroupService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	groups, err := s.store.ListGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Get returns a group userID participates in. Groups the user is not part of
// are reported as not found.
func (s *GroupService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup || !conv.HasParticipant(userID) {
		return nil, model.ErrConversationNotFound
	}
	return conv, nil
}

// AddMember adds an existing user to the group.
func (s *GroupService) AddMember(ctx context.Context, requesterID, conversationID, newMemberID string) (_ *model.Conversation, err error) {
	ctx, span := tracer.Start(ctx, "GroupService.AddMember", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(newMemberID) == "" {
		return nil, model.ErrInvalidPayload
	}
	if _, err := s.users.FindUserByID(ctx, newMemberID); err != nil {
		return nil, err
	}

	conv, err := s.store.AddMember(ctx, conversationID, requesterID, newMemberID)
	if err != nil {
		return nil, err
	}
	s.events.event(ctx, conv.ID, model.ConversationEventMemberAdded, requesterID, newMemberID, nil)
	return conv, nil
}

// RemoveMember removes a participant from the group.
func (s *GroupService) RemoveMember(ctx context.Context, requesterID, conversationID, targetID string) (_ *model.Conversation, err error) {
	ctx, span := tracer.Start(ctx, "GroupService.RemoveMember", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer func() { endSpan(span, err) }()

	conv, err := s.store.RemoveMember(ctx, conversationID, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	s.events.event(ctx, conv.ID, model.ConversationEventMemberRemoved, requesterID, targetID, nil)
	return conv, nil
}

// Rename sets the group's name.
func (s *GroupService) Rename(ctx context.Context, requesterID, conversationID, newName string) (_ *model.Conversation, err error) {
	ctx, span := tracer.Start(ctx, "GroupService.Rename", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer func() { endSpan(span, err) }()

	conv, err := s.store.Rename(ctx, conversationID, requesterID, newName)
	if err != nil {
		return nil, err
	}
	s.events.event(ctx, conv.ID, model.ConversationEventRenamed, requesterID, "", map[string]string{
		"group_name": conv.GroupName,
	})
	return conv, nil
}
