// main.go — точка входа SecureVault.
// Порядок: config → logger → PostgreSQL (+миграции) → filestore →
// доменные движки (session, mfa, access, kms) → сервисы → handlers →
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/bigkaa/gosecvault/internal/access"
	"github.com/bigkaa/gosecvault/internal/api/handlers"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/config"
	"github.com/bigkaa/gosecvault/internal/database"
	"github.com/bigkaa/gosecvault/internal/kms"
	"github.com/bigkaa/gosecvault/internal/mfa"
	"github.com/bigkaa/gosecvault/internal/repository"
	"github.com/bigkaa/gosecvault/internal/server"
	"github.com/bigkaa/gosecvault/internal/service"
	"github.com/bigkaa/gosecvault/internal/session"
	"github.com/bigkaa/gosecvault/internal/storage/filestore"
	"github.com/bigkaa/gosecvault/internal/token"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("SecureVault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Миграции схемы БД
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций", slog.String("error", err.Error()))
		log.Fatalf("Миграции не применились: %v", err)
	}

	// 4. Подключение к PostgreSQL
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		log.Fatalf("PostgreSQL недоступен: %v", err)
	}
	defer pool.Close()

	// 5. Filestore для зашифрованных блобов
	store, err := filestore.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации filestore", slog.String("error", err.Error()))
		log.Fatalf("Filestore недоступен: %v", err)
	}

	// 6. Репозитории
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	shareRepo := repository.NewShareRepository(pool)
	linkRepo := repository.NewLinkRepository(pool)
	keyRepo := repository.NewKeyRepository(pool)
	delegationRepo := repository.NewDelegationRepository(pool)

	// 7. Доменные движки
	codec := token.NewCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTLeeway)
	sessions := session.NewManager(codec, userRepo,
		cfg.AccessTokenLifetime, cfg.RefreshTokenLifetime, logger)
	mfaEngine := mfa.NewEngine(userRepo, cfg.TOTPIssuer, uint(cfg.TOTPSkew), logger)
	resolver := access.NewResolver(shareRepo, linkRepo, logger)
	broker := kms.NewBroker(keyRepo, delegationRepo, userRepo,
		cfg.KeyCacheSize, cfg.KeyCacheTTL, logger)

	// 8. Сервисы
	authService := service.NewAuthService(userRepo, mfaEngine, logger)
	fileService := service.NewFileService(fileRepo, store, logger)
	shareService := service.NewShareService(shareRepo, userRepo, logger)
	linkService := service.NewLinkService(linkRepo, cfg.LinkDefaultExpiry, logger)

	// 9. Middleware guards
	sessionAuth := middleware.NewSessionAuth(sessions, cfg.CookieSecure, logger)
	fileGuard := middleware.NewFileGuard(fileService, resolver, logger)

	// 10. Handlers
	h := server.Handlers{
		Health: handlers.NewHealthHandler(database.NewReadinessChecker(pool)),
		Auth:   handlers.NewAuthHandler(authService, sessions, sessionAuth, logger),
		MFA:    handlers.NewMFAHandler(mfaEngine, logger),
		Files:  handlers.NewFileHandler(fileService, resolver, cfg.MaxUploadBytes, logger),
		Shares: handlers.NewShareHandler(shareService, logger),
		Links:  handlers.NewLinkHandler(linkService, fileService, resolver, logger),
		KMS:    handlers.NewKMSHandler(broker, logger),
	}

	// 11. Запуск HTTP-сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, sessionAuth, fileGuard)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("SecureVault остановлен")
}
