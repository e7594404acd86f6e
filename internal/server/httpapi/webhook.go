package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/cryptox"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

// WebhookSecretHeader carries the shared secret sent by the notifier.
const WebhookSecretHeader = "X-Webhook-Secret"

const maxWebhookBody = 64 << 10

type confirmer interface {
	FileIDForKey(ctx context.Context, key string) (string, error)
	ConfirmUpload(ctx context.Context, id string) (*models.FileRecord, error)
}

type objectCreatedRequest struct {
	Key string `json:"key"`
}

type objectCreatedResponse struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

func (s *HTTPServer) handleObjectCreated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := s.objectCreated(w, r)
	s.metrics.WebhookRequest(strconv.Itoa(code))
	s.logger.Debug(ctx, "webhook handled", "code", code)
}

func (s *HTTPServer) objectCreated(w http.ResponseWriter, r *http.Request) int {
	ctx := r.Context()

	if s.secret != "" {
		if !cryptox.SecretsEqual(r.Header.Get(WebhookSecretHeader), s.secret) {
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return http.StatusUnauthorized
		}
	}

	var req objectCreatedRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return http.StatusBadRequest
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return http.StatusBadRequest
		}
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return http.StatusBadRequest
	}

	id, err := s.files.FileIDForKey(ctx, req.Key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no file for key")
			return http.StatusNotFound
		}
		s.logger.Error(ctx, "webhook lookup failed", "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return http.StatusInternalServerError
	}

	// An object that is not visible yet also lands here as 500 so the
	// notifier retries delivery.
	rec, err := s.files.ConfirmUpload(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "webhook confirmation failed", "file_id", id, "kind", common.Kind(err), "error", err)
		writeError(w, http.StatusInternalServerError, "confirmation failed")
		return http.StatusInternalServerError
	}

	writeOK(w, objectCreatedResponse{FileID: rec.ID, Status: string(rec.Status)})
	return http.StatusOK
}
