// Пакет config — загрузка и валидация конфигурации Secure Vault
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Secure Vault.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сессионные токены ---

	// Секрет подписи JWT (HS256)
	JWTSecret string
	// Issuer сессионных токенов
	JWTIssuer string
	// Срок жизни access-токена
	AccessTokenLifetime time.Duration
	// Срок жизни refresh-токена
	RefreshTokenLifetime time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Использовать Secure flag для cookie (true за TLS-терминатором)
	CookieSecure bool

	// --- MFA ---

	// Issuer в otpauth:// URI (отображается в приложении-аутентификаторе)
	TOTPIssuer string
	// Допуск по временным окнам TOTP (0 — только текущее окно)
	TOTPSkew int

	// --- Ссылки общего доступа ---

	// Срок жизни ссылки по умолчанию, если не задан при создании
	LinkDefaultExpiry time.Duration

	// --- Filestore ---

	// Каталог хранения зашифрованных файлов
	StorageDir string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadBytes int64

	// --- KMS ---

	// Размер LRU-кэша публичных ключей
	KeyCacheSize int
	// TTL записей кэша публичных ключей
	KeyCacheTTL time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SV_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("SV_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("SV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SV_LOG_LEVEL: %w", err)
	}

	// SV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// SV_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("SV_DB_HOST")
	if err != nil {
		return nil, err
	}

	// SV_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("SV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SV_DB_PORT: %w", err)
	}

	// SV_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("SV_DB_NAME")
	if err != nil {
		return nil, err
	}

	// SV_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("SV_DB_USER")
	if err != nil {
		return nil, err
	}

	// SV_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("SV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// SV_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("SV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Сессионные токены ---

	// SV_JWT_SECRET — обязательный, минимум 32 символа
	cfg.JWTSecret, err = getEnvRequired("SV_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("SV_JWT_SECRET: длина %d меньше минимальной 32", len(cfg.JWTSecret))
	}

	// SV_JWT_ISSUER — issuer токенов (по умолчанию gosecvault)
	cfg.JWTIssuer = getEnvDefault("SV_JWT_ISSUER", "gosecvault")

	// SV_ACCESS_TOKEN_LIFETIME — срок жизни access-токена (по умолчанию 15m)
	cfg.AccessTokenLifetime, err = getEnvDuration("SV_ACCESS_TOKEN_LIFETIME", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SV_ACCESS_TOKEN_LIFETIME: %w", err)
	}

	// SV_REFRESH_TOKEN_LIFETIME — срок жизни refresh-токена (по умолчанию 168h)
	cfg.RefreshTokenLifetime, err = getEnvDuration("SV_REFRESH_TOKEN_LIFETIME", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SV_REFRESH_TOKEN_LIFETIME: %w", err)
	}
	if cfg.RefreshTokenLifetime <= cfg.AccessTokenLifetime {
		return nil, fmt.Errorf("SV_REFRESH_TOKEN_LIFETIME: %s не больше срока access-токена %s",
			cfg.RefreshTokenLifetime, cfg.AccessTokenLifetime)
	}

	// SV_JWT_LEEWAY — допуск времени при проверке (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("SV_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_JWT_LEEWAY: %w", err)
	}

	// SV_COOKIE_SECURE — Secure flag для cookie (по умолчанию true)
	cfg.CookieSecure, err = getEnvBool("SV_COOKIE_SECURE", true)
	if err != nil {
		return nil, fmt.Errorf("SV_COOKIE_SECURE: %w", err)
	}

	// --- MFA ---

	// SV_TOTP_ISSUER — issuer в otpauth URI (по умолчанию SecureVault)
	cfg.TOTPIssuer = getEnvDefault("SV_TOTP_ISSUER", "SecureVault")

	// SV_TOTP_SKEW — допуск по окнам TOTP (по умолчанию 1)
	cfg.TOTPSkew, err = getEnvInt("SV_TOTP_SKEW", 1)
	if err != nil {
		return nil, fmt.Errorf("SV_TOTP_SKEW: %w", err)
	}
	if cfg.TOTPSkew < 0 || cfg.TOTPSkew > 2 {
		return nil, fmt.Errorf("SV_TOTP_SKEW: значение %d вне допустимого диапазона 0-2", cfg.TOTPSkew)
	}

	// --- Ссылки общего доступа ---

	// SV_LINK_DEFAULT_EXPIRY — срок ссылки по умолчанию (по умолчанию 60m)
	cfg.LinkDefaultExpiry, err = getEnvDuration("SV_LINK_DEFAULT_EXPIRY", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SV_LINK_DEFAULT_EXPIRY: %w", err)
	}

	// --- Filestore ---

	// SV_STORAGE_DIR — каталог хранения (по умолчанию ./data/files)
	cfg.StorageDir = getEnvDefault("SV_STORAGE_DIR", "./data/files")

	// SV_MAX_UPLOAD_BYTES — лимит размера загрузки (по умолчанию 100 MiB)
	maxUpload, err := getEnvInt("SV_MAX_UPLOAD_BYTES", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("SV_MAX_UPLOAD_BYTES: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("SV_MAX_UPLOAD_BYTES: значение должно быть положительным")
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	// --- KMS ---

	// SV_KEY_CACHE_SIZE — размер кэша публичных ключей (по умолчанию 1024)
	cfg.KeyCacheSize, err = getEnvInt("SV_KEY_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("SV_KEY_CACHE_SIZE: %w", err)
	}
	if cfg.KeyCacheSize < 1 {
		return nil, fmt.Errorf("SV_KEY_CACHE_SIZE: значение должно быть положительным")
	}

	// SV_KEY_CACHE_TTL — TTL кэша публичных ключей (по умолчанию 10m)
	cfg.KeyCacheTTL, err = getEnvDuration("SV_KEY_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SV_KEY_CACHE_TTL: %w", err)
	}

	// --- Graceful shutdown ---

	// SV_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
