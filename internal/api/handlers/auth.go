// auth.go — обработчики регистрации, входа и выхода.
// После успешного входа пара токенов уходит в HttpOnly cookie,
// тело ответа токены не содержит.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/service"
	"github.com/bigkaa/gosecvault/internal/session"
)

// AuthHandler — обработчик аутентификации.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *session.Manager
	cookies  *middleware.SessionAuth
	logger   *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(
	auth *service.AuthService,
	sessions *session.Manager,
	cookies *middleware.SessionAuth,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// userResponse — представление пользователя в API.
type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		MFAEnabled: u.MFAEnabled(),
	}
}

// registerRequest — тело POST /api/v1/auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Role — роль нового пользователя; пусто — USER
	Role string `json:"role,omitempty"`
}

// Register — POST /api/v1/auth/register.
// Создаёт пользователя и сразу открывает сессию.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := h.openSession(w, u); err != nil {
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// loginRequest — тело POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// TOTPCode — код второго фактора; обязателен при включённой MFA
	TOTPCode string `json:"totp_code,omitempty"`
}

// Login — POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.auth.Login(r.Context(), req.Username, req.Password, req.TOTPCode)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := h.openSession(w, u); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Logout — POST /api/v1/auth/logout. Сбрасывает сессионные cookie.
// Токены самоподписанные и не отзываются: выход — операция клиента.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.ClearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /api/v1/auth/me. Текущий пользователь сессии.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// changeRoleRequest — тело PATCH /api/v1/admin/users/{username}/role.
type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole — PATCH /api/v1/admin/users/{username}/role.
// Доступен только администраторам (гейт ролей на маршруте).
// Роль в токенах других сессий обновится при следующей ротации.
func (h *AuthHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		apierrors.ValidationError(w, "Отсутствует поле role")
		return
	}

	u, err := h.auth.ChangeRole(r.Context(), username, req.Role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// openSession выпускает пару токенов и кладёт её в cookie.
// При ошибке сам пишет 500 и возвращает её для прерывания обработчика.
func (h *AuthHandler) openSession(w http.ResponseWriter, u *model.User) error {
	access, refresh, err := h.sessions.Issue(u)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return err
	}
	h.cookies.SetSessionCookies(w, access, refresh)
	return nil
}
