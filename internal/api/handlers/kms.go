// kms.go — обработчики хранителя ключей.
// key — получение/генерация пары, decrypt — делегированная
// расшифровка, access/grant|revoke|list — управление делегированиями.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/kms"
)

// KMSHandler — обработчик хранителя ключей.
type KMSHandler struct {
	broker *kms.Broker
	logger *slog.Logger
}

// NewKMSHandler создаёт обработчик KMS.
func NewKMSHandler(broker *kms.Broker, logger *slog.Logger) *KMSHandler {
	return &KMSHandler{
		broker: broker,
		logger: logger.With(slog.String("component", "kms_handler")),
	}
}

// Key — POST /api/v1/kms/key.
// Возвращает публичный ключ пользователя, генерируя пару при первом
// обращении. Приватный ключ не отдаётся никогда.
func (h *KMSHandler) Key(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	pub, created, err := h.broker.GetOrCreateKey(r.Context(), u.Username)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"public_key": pub})
}

// decryptRequest — тело POST /api/v1/kms/decrypt.
type decryptRequest struct {
	// Ciphertext — base64 шифртекста RSA-OAEP
	Ciphertext string `json:"ciphertext"`
	// KeyOwner — чьим ключом расшифровывать; пусто — своим
	KeyOwner string `json:"key_owner,omitempty"`
}

// Decrypt — POST /api/v1/kms/decrypt.
// Расшифровка чужим ключом требует делегирования.
func (h *KMSHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	var req decryptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Ciphertext == "" {
		apierrors.ValidationError(w, "Отсутствует поле ciphertext")
		return
	}

	plaintext, err := h.broker.Decrypt(r.Context(), u.Username, req.KeyOwner, req.Ciphertext)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plaintext": plaintext})
}

// delegationRequest — тело grant/revoke.
type delegationRequest struct {
	// Username — делегат
	Username string `json:"username"`
}

// GrantAccess — POST /api/v1/kms/access/grant.
// Выдаёт делегату право расшифровки ключом текущего пользователя.
func (h *KMSHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	var req delegationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		apierrors.ValidationError(w, "Отсутствует поле username")
		return
	}

	if err := h.broker.GrantDelegation(r.Context(), u.Username, req.Username); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAccess — POST /api/v1/kms/access/revoke.
func (h *KMSHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	var req delegationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		apierrors.ValidationError(w, "Отсутствует поле username")
		return
	}

	if err := h.broker.RevokeDelegation(r.Context(), u.Username, req.Username); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// delegationResponse — представление делегирования в API.
type delegationResponse struct {
	Delegate  string `json:"delegate"`
	CreatedAt string `json:"created_at"`
}

// ListAccess — GET /api/v1/kms/access/list.
// Делегирования, выданные текущим пользователем.
func (h *KMSHandler) ListAccess(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	list, err := h.broker.ListDelegations(r.Context(), u.Username)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	result := make([]delegationResponse, 0, len(list))
	for _, g := range list {
		result = append(result, delegationResponse{
			Delegate:  g.DelegateUsername,
			CreatedAt: g.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"delegations": result})
}
