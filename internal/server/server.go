// Пакет server — HTTP-сервер SecureVault с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на входном прокси.
// Собирает цепочки guard-middleware для всех маршрутов:
// Metrics → RequestLogger → SessionAuth → RequireMFA → (RequireRole |
// FileContext → RequirePermission/RequireOwner) → handler.
// MFA обязательна на всех защищённых маршрутах, кроме регистрации,
// входа, /auth/me и управления самой MFA.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gosecvault/internal/api/handlers"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/config"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/domain/rbac"
)

// Handlers — набор обработчиков для маршрутизации.
type Handlers struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	MFA    *handlers.MFAHandler
	Files  *handlers.FileHandler
	Shares *handlers.ShareHandler
	Links  *handlers.LinkHandler
	KMS    *handlers.KMSHandler
}

// Server — HTTP-сервер SecureVault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// sessionAuth — сессионный guard; fileGuard — guard файловых маршрутов.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	sessionAuth *middleware.SessionAuth,
	fileGuard *middleware.FileGuard,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health, metrics, регистрация и вход
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/register", h.Auth.Register)
		api.Post("/auth/login", h.Auth.Login)
		api.Post("/auth/logout", h.Auth.Logout)

		// Всё остальное — только с живой сессией
		api.Group(func(authed chi.Router) {
			authed.Use(sessionAuth.Middleware())

			authed.Get("/auth/me", h.Auth.Me)
			authed.Post("/auth/mfa/setup", h.MFA.Setup)
			authed.Post("/auth/mfa/verify", h.MFA.Verify)
			authed.Post("/auth/mfa/disable", h.MFA.Disable)

			// Проверка ссылки-капабилити: доступ даёт сама ссылка,
			// роль не проверяется — достаточно живой сессии с MFA
			authed.With(middleware.RequireMFA()).
				Get("/files/links/verify", h.Links.Verify)

			// Файловые операции — только с включённой MFA
			authed.Group(func(files chi.Router) {
				files.Use(middleware.RequireMFA())

				// Списки и загрузка — роли USER и ADMIN, гостям закрыто
				files.Group(func(coll chi.Router) {
					coll.Use(middleware.RequireRole(rbac.RoleUser, rbac.RoleAdmin))

					coll.Get("/files/list", h.Files.List)
					coll.Post("/files/upload", h.Files.Upload)
					coll.Get("/files/shares/me", h.Files.SharedWithMe)
				})

				// Маршруты конкретного файла: право решает resolver —
				// владение, выдача или токен ссылки ?token=, не роль
				files.Route("/files/{id}", func(file chi.Router) {
					file.Use(fileGuard.FileContext())

					// Просмотр метаданных: любое право
					file.With(fileGuard.RequirePermission("")).
						Get("/", h.Files.Get)
					file.With(fileGuard.RequirePermission("")).
						Get("/permission", h.Files.Permission)

					// Скачивание: строго DOWNLOAD (владелец проходит всегда)
					file.With(fileGuard.RequirePermission(model.PermissionDownload)).
						Get("/download", h.Files.Download)

					// Мутации — только владелец
					file.Group(func(owner chi.Router) {
						owner.Use(fileGuard.RequireOwner())

						owner.Delete("/", h.Files.Delete)

						owner.Get("/shares/list", h.Shares.List)
						owner.Post("/shares/add", h.Shares.Add)
						owner.Patch("/shares/{share_id}", h.Shares.Update)
						owner.Delete("/shares/{share_id}", h.Shares.Delete)

						owner.Post("/links/generate", h.Links.Generate)
						owner.Get("/links/list", h.Links.List)
						owner.Delete("/links/{link_id}", h.Links.Delete)
					})
				})
			})

			// Администрирование пользователей — только ADMIN с MFA
			authed.Group(func(admin chi.Router) {
				admin.Use(middleware.RequireMFA())
				admin.Use(middleware.RequireRole(rbac.RoleAdmin))

				admin.Patch("/admin/users/{username}/role", h.Auth.ChangeRole)
			})

			// KMS: ключи и делегирования — роли USER и ADMIN с MFA
			authed.Group(func(kmsRoutes chi.Router) {
				kmsRoutes.Use(middleware.RequireMFA())
				kmsRoutes.Use(middleware.RequireRole(rbac.RoleUser, rbac.RoleAdmin))

				kmsRoutes.Post("/kms/key", h.KMS.Key)
				kmsRoutes.Post("/kms/decrypt", h.KMS.Decrypt)
				kmsRoutes.Post("/kms/access/grant", h.KMS.GrantAccess)
				kmsRoutes.Post("/kms/access/revoke", h.KMS.RevokeAccess)
				kmsRoutes.Get("/kms/access/list", h.KMS.ListAccess)
			})
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
