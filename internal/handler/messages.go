package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkup-social/chat-platform/internal/middleware"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// ChatHandler handles direct conversation and history endpoints.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Open handles GET /api/v1/chats/:id where id is the other user's ID.
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	otherID := chi.URLParam(r, "id")

	if err := middleware.ValidateUserID(otherID); err != nil {
		writeAppError(w, r, h.logger, err, "open chat")
		return
	}

	conv, created, err := h.service.OpenDirect(ctx, middleware.GetUserID(ctx), otherID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "open chat")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, &model.ConversationResponse{Chat: conv, Created: created})
}

// Messages handles GET /api/v1/chats/:id/messages
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "list messages")
		return
	}

	afterSequence := queryInt64(r, "after_sequence", 0)
	limit := int(queryInt64(r, "limit", 0))

	resp, err := h.service.ListMessages(ctx, middleware.GetUserID(ctx), conversationID, afterSequence, limit)
	if err != nil {
		writeAppError(w, r, h.logger, err, "list messages")
		return
	}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}

	writeJSON(w, http.StatusOK, resp)
}
