// links.go — обработчики ссылок-капабилити.
// generate/list/delete — владелец файла (FileContext + RequireOwner);
// verify — аутентифицированный пользователь с токеном ссылки:
// возвращает метаданные файла, доступ даёт сама ссылка.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gosecvault/internal/access"
	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/service"
)

// LinkHandler — обработчик ссылок общего доступа.
type LinkHandler struct {
	links    *service.LinkService
	files    *service.FileService
	resolver *access.Resolver
	logger   *slog.Logger
}

// NewLinkHandler создаёт обработчик ссылок.
func NewLinkHandler(
	links *service.LinkService,
	files *service.FileService,
	resolver *access.Resolver,
	logger *slog.Logger,
) *LinkHandler {
	return &LinkHandler{
		links:    links,
		files:    files,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "link_handler")),
	}
}

// linkResponse — представление ссылки в API.
type linkResponse struct {
	ID        string  `json:"id"`
	FileID    string  `json:"file_id"`
	Token     string  `json:"token"`
	ExpiresAt *string `json:"expires_at"`
	CreatedAt string  `json:"created_at"`
}

func toLinkResponse(l *model.ShareLink) linkResponse {
	resp := linkResponse{
		ID:        l.ID,
		FileID:    l.FileID,
		Token:     l.Token,
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ExpiresAt != nil {
		s := l.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	return resp
}

// generateLinkRequest — тело POST /api/v1/files/{id}/links/generate.
type generateLinkRequest struct {
	// ExpiresInSeconds — срок жизни; 0 или отсутствие — срок по умолчанию
	ExpiresInSeconds int64 `json:"expires_in_seconds,omitempty"`
	// Eternal — бессрочная ссылка
	Eternal bool `json:"eternal,omitempty"`
}

// Generate — POST /api/v1/files/{id}/links/generate.
func (h *LinkHandler) Generate(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	// Тело опционально: без него — срок по умолчанию
	req := generateLinkRequest{}
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.links.Generate(r.Context(), u, f,
		time.Duration(req.ExpiresInSeconds)*time.Second, req.Eternal)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLinkResponse(link))
}

// List — GET /api/v1/files/{id}/links/list.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	list, err := h.links.ListForFile(r.Context(), u, f)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	result := make([]linkResponse, 0, len(list))
	for _, l := range list {
		result = append(result, toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": result})
}

// Delete — DELETE /api/v1/files/{id}/links/{link_id}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())
	linkID := chi.URLParam(r, "link_id")

	if err := h.links.Revoke(r.Context(), u, f, linkID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify — GET /api/v1/files/links/verify?token=...
// Разрешает ссылку и возвращает метаданные файла. Ссылка — неявный
// грант: прямая выдача не требуется, роль пользователя не проверяется.
func (h *LinkHandler) Verify(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	linkToken := r.URL.Query().Get("token")
	if linkToken == "" {
		apierrors.ValidationError(w, "Отсутствует параметр token")
		return
	}

	link, err := h.resolver.ResolveLink(r.Context(), linkToken)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	f, err := h.files.Get(r.Context(), link.FileID)
	if err != nil {
		// Файл удалён, ссылка осталась — для клиента это мёртвая ссылка
		apierrors.LinkInvalid(w, access.ErrInvalidOrExpiredLink.Error())
		return
	}

	if _, err := h.resolver.Resolve(r.Context(), u, f, "", true); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(f))
}
