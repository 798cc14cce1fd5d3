// file_ctx.go — загрузка файла из URL и проверка права доступа.
// Цепочка для файловых маршрутов: SessionAuth → FileContext →
// RequirePermission. Handlers получают файл и пользователя из контекста
// и не занимаются авторизацией сами.
// Запрос может нести токен ссылки-капабилити (?token=): валидный токен
// на этот же файл — неявный полный доступ без записи в share_grants.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/gosecvault/internal/access"
	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/service"
)

const (
	// ContextKeyFile — файл из сегмента {id} в контексте запроса.
	ContextKeyFile contextKey = "request_file"
	// ContextKeyViaLink — запрос нёс валидный токен ссылки на этот файл.
	ContextKeyViaLink contextKey = "request_via_link"
)

// FileGuard — middleware файловых маршрутов.
type FileGuard struct {
	files    *service.FileService
	resolver *access.Resolver
	logger   *slog.Logger
}

// NewFileGuard создаёт middleware файловых маршрутов.
func NewFileGuard(files *service.FileService, resolver *access.Resolver, logger *slog.Logger) *FileGuard {
	return &FileGuard{
		files:    files,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "file_guard")),
	}
}

// FileContext возвращает middleware, загружающий файл из сегмента {id}.
// Невалидный UUID и несуществующий файл дают одинаковый 404:
// существование чужих файлов не раскрывается.
func (g *FileGuard) FileContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if _, err := uuid.Parse(id); err != nil {
				apierrors.NotFound(w, "Файл не найден")
				return
			}

			f, err := g.files.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					apierrors.NotFound(w, "Файл не найден")
					return
				}
				g.logger.Error("ошибка загрузки файла",
					slog.String("file_id", id),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Внутренняя ошибка сервиса")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyFile, f)

			// Токен ссылки учитывается только если разрешается в этот же
			// файл. Мёртвый или чужой токен молча игнорируется: право
			// решится обычным порядком, наружу уйдёт тот же 404.
			if linkToken := r.URL.Query().Get("token"); linkToken != "" {
				link, err := g.resolver.ResolveLink(r.Context(), linkToken)
				if err == nil && link.FileID == f.ID {
					ctx = context.WithValue(ctx, ContextKeyViaLink, true)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission возвращает middleware, требующий право на файл.
// required — VIEW, DOWNLOAD или пустая строка (достаточно любого права).
// Разрешение выдачи сравнивается строго: VIEW не даёт DOWNLOAD.
// Должен использоваться ПОСЛЕ SessionAuth и FileContext.
func (g *FileGuard) RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			f := FileFromContext(r.Context())
			if u == nil || f == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			if _, err := g.resolver.Resolve(r.Context(), u, f, required, ViaLinkFromContext(r.Context())); err != nil {
				switch {
				case errors.Is(err, access.ErrNoAccess):
					// Нет никакого права — файл «не существует»
					apierrors.NotFound(w, "Файл не найден")
				case errors.Is(err, access.ErrInsufficientPermission):
					apierrors.Forbidden(w, "Недостаточное разрешение на файл")
				default:
					g.logger.Error("ошибка разрешения доступа",
						slog.String("file_id", f.ID),
						slog.String("error", err.Error()),
					)
					apierrors.InternalError(w, "Внутренняя ошибка сервиса")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner возвращает middleware, пропускающий только владельца файла.
// Для мутаций выдач и ссылок. Не владельцу — 404, не 403:
// существование файла не подтверждается.
func (g *FileGuard) RequireOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			f := FileFromContext(r.Context())
			if u == nil || f == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}
			if f.OwnerID != u.ID {
				apierrors.NotFound(w, "Файл не найден")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FileFromContext извлекает файл из контекста запроса.
// Возвращает nil, если FileContext не отработал.
func FileFromContext(ctx context.Context) *model.File {
	f, _ := ctx.Value(ContextKeyFile).(*model.File)
	return f
}

// ViaLinkFromContext сообщает, нёс ли запрос валидный токен ссылки
// на файл из контекста.
func ViaLinkFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ContextKeyViaLink).(bool)
	return v
}
