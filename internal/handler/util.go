package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/middleware"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeAppError maps a service error to a status code. Anything that is not a
// domain error is logged and reported with a generic message.
func writeAppError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, action string) {
	status := statusFor(model.KindOf(err))
	if status == http.StatusInternalServerError {
		ctx := r.Context()
		log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx)).
			Error("failed to "+action, zap.Error(err))
		writeError(w, status, "failed to "+action)
		return
	}
	writeError(w, status, model.PublicMessage(err, "failed to "+action))
}

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindAuthentication:
		return http.StatusUnauthorized
	case model.KindAuthorization:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt64 returns the non-negative integer query parameter name, or def when it is absent or malformed.
func queryInt64(r *http.Request, name string, def int64) int64 {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}
