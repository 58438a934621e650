// Package service implements message dispatch and group management on top of
// the conversation store.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// EventPublisher appends persisted messages and conversation events to the
// chat event log.
type EventPublisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher discards everything. Used when the event log is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, *model.Message) (uint64, error) { return 0, nil }

func (NopPublisher) PublishEvent(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// eventLog publishes best-effort: failures are logged and never returned.
type eventLog struct {
	publisher EventPublisher
	logger    *logger.Logger
}

func (l eventLog) message(ctx context.Context, msg *model.Message) {
	if _, err := l.publisher.PublishMessage(ctx, msg); err != nil {
		l.logger.Warn("failed to publish message",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (l eventLog) event(ctx context.Context, conversationID string, typ model.ConversationEventType, actorID, subjectID string, metadata map[string]string) {
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Type:           typ,
		ActorID:        actorID,
		SubjectID:      subjectID,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := l.publisher.PublishEvent(ctx, event); err != nil {
		l.logger.Warn("failed to publish conversation event",
			zap.String("conversation_id", conversationID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
