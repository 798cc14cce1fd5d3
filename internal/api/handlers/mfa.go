// mfa.go — обработчики второго фактора.
// setup выдаёт секрет и otpauth-ссылку, verify проверяет код,
// disable выключает MFA (требует действующий код).
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/mfa"
)

// MFAHandler — обработчик MFA.
type MFAHandler struct {
	engine *mfa.Engine
	logger *slog.Logger
}

// NewMFAHandler создаёт обработчик MFA.
func NewMFAHandler(engine *mfa.Engine, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{
		engine: engine,
		logger: logger.With(slog.String("component", "mfa_handler")),
	}
}

// setupResponse — ответ POST /api/v1/auth/mfa/setup.
type setupResponse struct {
	// Secret — base32-секрет для ручного ввода
	Secret string `json:"secret"`
	// URI — otpauth://-ссылка для QR-кода
	URI string `json:"uri"`
}

// Setup — POST /api/v1/auth/mfa/setup. Включает MFA.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	enr, err := h.engine.Enroll(r.Context(), u)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, setupResponse{
		Secret: enr.Secret,
		URI:    enr.URI,
	})
}

// codeRequest — тело с кодом подтверждения.
type codeRequest struct {
	Code string `json:"code"`
}

// Verify — POST /api/v1/auth/mfa/verify. Проверяет код TOTP.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.Verify(u, req.Code); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// Disable — POST /api/v1/auth/mfa/disable.
// Выключает MFA; требует действующий код — украденная сессия
// без аутентификатора не должна снимать второй фактор.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !u.MFAEnabled() {
		// Идемпотентность: выключение выключенной — no-op
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.engine.Verify(u, req.Code); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.engine.Disable(r.Context(), u); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
