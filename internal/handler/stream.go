package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/middleware"
	"github.com/linkup-social/chat-platform/internal/model"
	natsclient "github.com/linkup-social/chat-platform/internal/nats"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/pkg/logger"
	"github.com/linkup-social/chat-platform/pkg/metrics"
)

const (
	replayBatchSize   = 50
	feedBuffer        = 64
	heartbeatInterval = 30 * time.Second
)

// MessageTail subscribes to new messages of a conversation.
type MessageTail interface {
	Tail(ctx context.Context, conversationID string, buffer int) (*natsclient.Feed, error)
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	service   *service.ChatService
	tail      MessageTail
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. tail may be nil, in which case
// streams replay history and then only send heartbeats.
func NewStreamHandler(svc *service.ChatService, tail MessageTail, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		service:   svc,
		tail:      tail,
		logger:    log,
		heartbeat: heartbeatInterval,
	}
}

// Stream handles GET /api/v1/chats/:id/stream
// Supports ?after_sequence=N for resuming from a specific point.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "open stream")
		return
	}

	if _, err := h.service.Conversation(ctx, userID, conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "open stream")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before replaying so nothing published in between is lost.
	var live <-chan *model.Message
	if h.tail != nil {
		feed, err := h.tail.Tail(ctx, conversationID, feedBuffer)
		if err != nil {
			h.logger.Warn("live feed unavailable",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		} else {
			defer feed.Stop()
			live = feed.C
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, model.EventConnected, map[string]string{
		"chatId": conversationID,
	})

	lastSequence := queryInt64(r, "after_sequence", 0)
	replayed := 0
	for {
		resp, err := h.service.ListMessages(ctx, userID, conversationID, lastSequence, replayBatchSize)
		if err != nil {
			h.logger.Error("failed to replay messages",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			sendSSEEvent(w, flusher, model.EventCustomError, &model.NoticeEvent{
				Message: "Failed to replay messages",
			})
			return
		}

		for i := range resp.Messages {
			if ctx.Err() != nil {
				return
			}
			sendSSEEvent(w, flusher, model.EventNewMessage, &model.ChatMessageEvent{
				Message: &resp.Messages[i],
				ChatID:  conversationID,
			})
			replayed++
		}
		lastSequence = resp.LastSequence

		if !resp.HasMore {
			break
		}
	}

	sendSSEEvent(w, flusher, "replayComplete", &model.ReplayCompleteEvent{
		LastSequence: lastSequence,
		MessageCount: replayed,
	})

	h.logger.Debug("message replay complete",
		zap.String("conversation_id", conversationID),
		zap.Int("messages_replayed", replayed),
		zap.Int64("last_sequence", lastSequence),
	)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("conversation_id", conversationID))
			return

		case msg := <-live:
			if msg.Sequence <= lastSequence {
				continue
			}
			lastSequence = msg.Sequence
			if err := sendSSEEvent(w, flusher, model.EventNewMessage, &model.ChatMessageEvent{
				Message: msg,
				ChatID:  conversationID,
			}); err != nil {
				return
			}

		case <-heartbeat.C:
			// Membership can change while the stream is open.
			if _, err := h.service.Conversation(ctx, userID, conversationID); err != nil {
				sendSSEEvent(w, flusher, model.EventCustomError, &model.NoticeEvent{
					Message: model.PublicMessage(err, "Something went wrong"),
				})
				return
			}
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
