// auth.go — сессионная аутентификация по паре cookie.
// Разрешает сессию через session.Manager; при тихой ротации
// переписывает access-cookie прямо в ответе — клиент смены не видит.
// Дальше по цепочке: RequireMFA, RequireRole.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/domain/rbac"
	"github.com/bigkaa/gosecvault/internal/session"
)

// Имена сессионных cookie.
const (
	// CookieAccess — cookie access-токена.
	CookieAccess = "sv_access"
	// CookieRefresh — cookie refresh-токена.
	CookieRefresh = "sv_refresh"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
	ContextKeyUser contextKey = "session_user"
)

// SessionAuth — middleware сессионной аутентификации.
type SessionAuth struct {
	sessions     *session.Manager
	cookieSecure bool
	logger       *slog.Logger
}

// NewSessionAuth создаёт middleware сессионной аутентификации.
// cookieSecure — выставлять ли Secure на cookie (SV_COOKIE_SECURE).
func NewSessionAuth(sessions *session.Manager, cookieSecure bool, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		sessions:     sessions,
		cookieSecure: cookieSecure,
		logger:       logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware аутентификации.
// Извлекает пару cookie, разрешает сессию и помещает пользователя
// в контекст. Свежий access-токен после ротации уходит в Set-Cookie.
func (a *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := cookieValue(r, CookieAccess)
			refresh := cookieValue(r, CookieRefresh)

			u, newAccess, err := a.sessions.Resolve(r.Context(), access, refresh)
			if err != nil {
				a.reject(w, err)
				return
			}

			if newAccess != "" {
				a.SetAccessCookie(w, newAccess)
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject пишет отказ аутентификации. При истёкшей сессии cookie
// сбрасываются: клиент не будет бесконечно слать мёртвую пару.
func (a *SessionAuth) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		a.ClearSessionCookies(w)
		apierrors.SessionExpired(w, "Сессия истекла, требуется повторный вход")
	case errors.Is(err, session.ErrUnauthenticated):
		apierrors.Unauthorized(w, "Требуется аутентификация")
	default:
		a.logger.Error("ошибка разрешения сессии",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}

// SetSessionCookies выставляет пару сессионных cookie после входа.
func (a *SessionAuth) SetSessionCookies(w http.ResponseWriter, access, refresh string) {
	a.SetAccessCookie(w, access)
	http.SetCookie(w, a.sessionCookie(CookieRefresh, refresh, a.sessions.RefreshTTL()))
}

// SetAccessCookie выставляет access-cookie (вход или тихая ротация).
func (a *SessionAuth) SetAccessCookie(w http.ResponseWriter, access string) {
	http.SetCookie(w, a.sessionCookie(CookieAccess, access, a.sessions.AccessTTL()))
}

// ClearSessionCookies сбрасывает обе сессионные cookie (выход, истечение).
func (a *SessionAuth) ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieAccess, CookieRefresh} {
		c := a.sessionCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// sessionCookie собирает cookie с едиными атрибутами безопасности.
func (a *SessionAuth) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// cookieValue возвращает значение cookie или пустую строку.
func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// --- Guard middleware ---

// RequireMFA возвращает middleware, требующий включённой MFA.
// Проверяется ТЕКУЩЕЕ состояние пользователя из БД, не снапшот в токене.
// Должен использоваться ПОСЛЕ SessionAuth.Middleware().
func RequireMFA() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}
			if !u.MFAEnabled() {
				apierrors.MFARequired(w, "Операция требует включённой MFA")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Роли сравниваются по точному вхождению, без иерархии.
// Должен использоваться ПОСЛЕ SessionAuth.Middleware().
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}
			if !rbac.Allowed(u.Role, roles...) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если аутентификация не проходила.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(ContextKeyUser).(*model.User)
	return u
}
