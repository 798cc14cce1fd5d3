package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SV_DB_HOST", "localhost")
	t.Setenv("SV_DB_NAME", "secvault")
	t.Setenv("SV_DB_USER", "secvault")
	t.Setenv("SV_DB_PASSWORD", "secret")
	t.Setenv("SV_JWT_SECRET", strings.Repeat("s", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, хотели 8000", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, хотели json", cfg.LogFormat)
	}
	if cfg.AccessTokenLifetime != 15*time.Minute {
		t.Errorf("AccessTokenLifetime = %s, хотели 15m", cfg.AccessTokenLifetime)
	}
	if cfg.RefreshTokenLifetime != 7*24*time.Hour {
		t.Errorf("RefreshTokenLifetime = %s, хотели 168h", cfg.RefreshTokenLifetime)
	}
	if cfg.TOTPSkew != 1 {
		t.Errorf("TOTPSkew = %d, хотели 1", cfg.TOTPSkew)
	}
	if cfg.LinkDefaultExpiry != time.Hour {
		t.Errorf("LinkDefaultExpiry = %s, хотели 1h", cfg.LinkDefaultExpiry)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, хотели true по умолчанию")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		skip string
	}{
		{name: "нет SV_DB_HOST", skip: "SV_DB_HOST"},
		{name: "нет SV_DB_NAME", skip: "SV_DB_NAME"},
		{name: "нет SV_DB_USER", skip: "SV_DB_USER"},
		{name: "нет SV_DB_PASSWORD", skip: "SV_DB_PASSWORD"},
		{name: "нет SV_JWT_SECRET", skip: "SV_JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skip, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", tt.skip)
			}
		})
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SV_JWT_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Error("Load() с коротким SV_JWT_SECRET должен вернуть ошибку")
	}
}

func TestLoad_RefreshNotLongerThanAccess(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SV_ACCESS_TOKEN_LIFETIME", "1h")
	t.Setenv("SV_REFRESH_TOKEN_LIFETIME", "30m")

	if _, err := Load(); err == nil {
		t.Error("Load() должен отклонить refresh-срок короче access-срока")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "некорректный порт", key: "SV_PORT", value: "abc"},
		{name: "порт вне диапазона", key: "SV_PORT", value: "99999"},
		{name: "некорректный формат логов", key: "SV_LOG_FORMAT", value: "xml"},
		{name: "некорректный уровень логов", key: "SV_LOG_LEVEL", value: "trace"},
		{name: "некорректный SSL-режим", key: "SV_DB_SSL_MODE", value: "maybe"},
		{name: "skew вне диапазона", key: "SV_TOTP_SKEW", value: "5"},
		{name: "некорректная длительность", key: "SV_ACCESS_TOKEN_LIFETIME", value: "15 минут"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "WARN", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseLogLevel(%q) должен вернуть ошибку", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLogLevel(%q) ошибка: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, хотели %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	dsn := cfg.DatabaseDSN()
	for _, part := range []string{"host=localhost", "dbname=secvault", "user=secvault", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q не содержит %q", dsn, part)
		}
	}
}
