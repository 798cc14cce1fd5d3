// shares.go — обработчики прямых выдач доступа.
// Все маршруты проходят через FileContext + RequireOwner:
// handlers работают уже с файлом владельца.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/service"
)

// ShareHandler — обработчик выдач доступа.
type ShareHandler struct {
	shares *service.ShareService
	logger *slog.Logger
}

// NewShareHandler создаёт обработчик выдач.
func NewShareHandler(shares *service.ShareService, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{
		shares: shares,
		logger: logger.With(slog.String("component", "share_handler")),
	}
}

// shareResponse — представление выдачи в API.
type shareResponse struct {
	ID              string `json:"id"`
	FileID          string `json:"file_id"`
	GranteeUsername string `json:"grantee_username"`
	Permission      string `json:"permission"`
	CreatedAt       string `json:"created_at"`
}

func toShareResponse(g *model.ShareGrant) shareResponse {
	return shareResponse{
		ID:              g.ID,
		FileID:          g.FileID,
		GranteeUsername: g.GranteeUsername,
		Permission:      g.Permission,
		CreatedAt:       g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List — GET /api/v1/files/{id}/shares/list.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	list, err := h.shares.ListForFile(r.Context(), u, f)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	result := make([]shareResponse, 0, len(list))
	for _, g := range list {
		result = append(result, toShareResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": result})
}

// addShareRequest — тело POST /api/v1/files/{id}/shares/add.
type addShareRequest struct {
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

// Add — POST /api/v1/files/{id}/shares/add.
func (h *ShareHandler) Add(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	var req addShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.shares.Grant(r.Context(), u, f, req.Username, req.Permission)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShareResponse(g))
}

// updateShareRequest — тело PATCH /api/v1/files/{id}/shares/{share_id}.
type updateShareRequest struct {
	Permission string `json:"permission"`
}

// Update — PATCH /api/v1/files/{id}/shares/{share_id}.
// Меняет разрешение существующей выдачи.
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())
	shareID := chi.URLParam(r, "share_id")

	var req updateShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.shares.UpdatePermission(r.Context(), u, f, shareID, req.Permission)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toShareResponse(g))
}

// Delete — DELETE /api/v1/files/{id}/shares/{share_id}.
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())
	shareID := chi.URLParam(r, "share_id")

	if err := h.shares.Revoke(r.Context(), u, f, shareID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
