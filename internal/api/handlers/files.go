// files.go — обработчики файловых операций.
// Загрузка multipart, выдача метаданных и содержимого, списки,
// действующее право, удаление. Авторизация — на уровне middleware
// (FileContext + RequirePermission/RequireOwner).
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/gosecvault/internal/access"
	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/service"
)

// FileHandler — обработчик файловых операций.
type FileHandler struct {
	files          *service.FileService
	resolver       *access.Resolver
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewFileHandler создаёт обработчик файлов.
// maxUploadBytes — предел размера загрузки (SV_MAX_UPLOAD_BYTES).
func NewFileHandler(
	files *service.FileService,
	resolver *access.Resolver,
	maxUploadBytes int64,
	logger *slog.Logger,
) *FileHandler {
	return &FileHandler{
		files:          files,
		resolver:       resolver,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "file_handler")),
	}
}

// fileResponse — представление файла в API.
// encrypted_key отдаётся: расшифровать его может только владелец
// ключа (или делегат) через KMS.
type fileResponse struct {
	ID            string `json:"id"`
	FileName      string `json:"file_name"`
	OwnerUsername string `json:"owner_username"`
	EncryptedKey  string `json:"encrypted_key"`
	CreatedAt     string `json:"created_at"`
}

func toFileResponse(f *model.File) fileResponse {
	return fileResponse{
		ID:            f.ID,
		FileName:      f.FileName,
		OwnerUsername: f.OwnerUsername,
		EncryptedKey:  f.EncryptedKey,
		CreatedAt:     f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toFileResponses(files []*model.File) []fileResponse {
	result := make([]fileResponse, 0, len(files))
	for _, f := range files {
		result = append(result, toFileResponse(f))
	}
	return result
}

// List — GET /api/v1/files/list. Файлы владельца.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	files, err := h.files.ListOwn(r.Context(), u)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileResponses(files)})
}

// SharedWithMe — GET /api/v1/files/shares/me. Файлы, выданные пользователю.
func (h *FileHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	files, err := h.files.ListSharedWith(r.Context(), u)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileResponses(files)})
}

// Upload — POST /api/v1/files/upload.
// Multipart: поле file — шифртекст, поле encrypted_key — ключ
// шифрования, зашифрованный публичным ключом владельца (base64).
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file в multipart-запросе")
		return
	}
	defer file.Close()

	encryptedKey := r.FormValue("encrypted_key")

	created, err := h.files.Upload(r.Context(), u, header.Filename, encryptedKey, file)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(created))
}

// Get — GET /api/v1/files/{id}. Метаданные файла.
// Доступ уже проверен middleware (любое право).
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	f := middleware.FileFromContext(r.Context())
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

// Download — GET /api/v1/files/{id}/download. Содержимое файла.
// Middleware требует DOWNLOAD; владельца пропускает без выдачи.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	f := middleware.FileFromContext(r.Context())
	h.serveContent(w, f)
}

// Permission — GET /api/v1/files/{id}/permission.
// Действующее право текущего пользователя: OWNER, LINK, VIEW, DOWNLOAD.
func (h *FileHandler) Permission(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	perm, err := h.resolver.EffectivePermission(r.Context(), u, f, middleware.ViaLinkFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, access.ErrNoAccess) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"permission": perm})
}

// Delete — DELETE /api/v1/files/{id}. Только владелец (middleware).
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	f := middleware.FileFromContext(r.Context())

	if err := h.files.Delete(r.Context(), u, f); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveContent отдаёт шифртекст файла как attachment.
func (h *FileHandler) serveContent(w http.ResponseWriter, f *model.File) {
	blob, err := h.files.OpenContent(f)
	if err != nil {
		h.logger.Error("блоб файла недоступен",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Содержимое файла недоступно")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.FileName+`"`)
	if _, err := io.Copy(w, blob); err != nil {
		h.logger.Warn("прерванная отдача файла",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
	}
}
