package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/model"
)

const (
	// StreamName is the name of the chat event stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the chat stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Persisted chat messages and conversation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message in a conversation.
func MessageSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s.msg", SubjectPrefix, conversationID)
}

// EventSubject returns the subject for a conversation event.
func EventSubject(conversationID string, eventType model.ConversationEventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, conversationID, eventType)
}

// ConversationFilter returns the filter subject for everything in a conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, conversationID)
}

// PublishMessage publishes a persisted message. The message id is used as the
// JetStream deduplication id.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, MessageSubject(msg.ConversationID), data, jetstream.WithMsgID(msg.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	return ack.Sequence, nil
}

// PublishEvent publishes a conversation lifecycle event.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.ConversationID, event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// Feed is a live subscription to one conversation's messages.
type Feed struct {
	C    <-chan *model.Message
	stop func()
}

// Stop ends the subscription.
func (f *Feed) Stop() {
	f.stop()
}

// Tail subscribes to messages published to a conversation from now on. Messages
// arriving faster than the buffer drains are dropped; clients recover them from
// history by sequence.
func (m *StreamManager) Tail(ctx context.Context, conversationID string, buffer int) (*Feed, error) {
	cons, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{MessageSubject(conversationID)},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	ch := make(chan *model.Message, buffer)
	cc, err := cons.Consume(func(raw jetstream.Msg) {
		var msg model.Message
		if err := json.Unmarshal(raw.Data(), &msg); err != nil {
			m.client.logger.Warn("dropping undecodable message",
				zap.String("subject", raw.Subject()),
				zap.Error(err),
			)
			return
		}
		select {
		case ch <- &msg:
		default:
			m.client.logger.Warn("feed buffer full, dropping message",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", msg.ID),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	return &Feed{C: ch, stop: cc.Stop}, nil
}
