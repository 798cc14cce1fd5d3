// Пакет mfa — включение и проверка второго фактора (TOTP).
// Секрет хранится в записи пользователя; его наличие и означает
// «MFA включена», отдельного флага нет.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

var (
	// ErrAlreadyEnrolled — у пользователя уже есть TOTP-секрет.
	// Перезапись запрещена: сначала явное отключение.
	ErrAlreadyEnrolled = errors.New("MFA уже включена")
	// ErrNotEnrolled — у пользователя нет TOTP-секрета.
	ErrNotEnrolled = errors.New("MFA не включена")
	// ErrInvalidCode — код не прошёл проверку в допустимом окне.
	ErrInvalidCode = errors.New("неверный код подтверждения")
)

// SecretStore — персистенция TOTP-секрета пользователя.
// Реализуется repository.UserRepository.
type SecretStore interface {
	SetMFASecret(ctx context.Context, userID string, secret *string) error
}

// Enrollment — результат включения MFA.
type Enrollment struct {
	// Secret — base32-секрет для ручного ввода.
	Secret string
	// URI — otpauth://-ссылка для QR-кода аутентификатора.
	URI string
}

// Engine — движок TOTP.
type Engine struct {
	store  SecretStore
	issuer string
	skew   uint
	logger *slog.Logger

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewEngine создаёт движок MFA.
// issuer — имя сервиса в аутентификаторе (SV_TOTP_ISSUER).
// skew — количество 30-секундных окон допуска в каждую сторону (SV_TOTP_SKEW).
func NewEngine(store SecretStore, issuer string, skew uint, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		issuer: issuer,
		skew:   skew,
		logger: logger.With(slog.String("component", "mfa_engine")),
		now:    time.Now,
	}
}

// Enroll генерирует TOTP-секрет для пользователя и сохраняет его.
// Повторное включение при живом секрете отклоняется.
func (e *Engine) Enroll(ctx context.Context, u *model.User) (*Enrollment, error) {
	if u.MFAEnabled() {
		return nil, ErrAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: u.Username,
		Period:      30,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("генерация TOTP-секрета: %w", err)
	}

	secret := key.Secret()
	if err := e.store.SetMFASecret(ctx, u.ID, &secret); err != nil {
		return nil, fmt.Errorf("сохранение TOTP-секрета: %w", err)
	}
	u.MFASecret = &secret

	e.logger.Info("MFA включена",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return &Enrollment{Secret: secret, URI: key.URL()}, nil
}

// Verify проверяет шестизначный код против секрета пользователя.
// Код нормализуется: пробелы и дефисы из аутентификаторов отбрасываются.
// Допуск по времени — skew окон в каждую сторону.
func (e *Engine) Verify(u *model.User, code string) error {
	if !u.MFAEnabled() {
		return ErrNotEnrolled
	}

	normalized := normalizeCode(code)
	if len(normalized) != 6 {
		return ErrInvalidCode
	}

	ok, err := totp.ValidateCustom(normalized, *u.MFASecret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("проверка TOTP-кода: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

// Disable удаляет TOTP-секрет пользователя. Идемпотентно:
// отключение уже отключённой MFA — не ошибка.
func (e *Engine) Disable(ctx context.Context, u *model.User) error {
	if !u.MFAEnabled() {
		return nil
	}

	if err := e.store.SetMFASecret(ctx, u.ID, nil); err != nil {
		return fmt.Errorf("удаление TOTP-секрета: %w", err)
	}
	u.MFASecret = nil

	e.logger.Info("MFA отключена",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return nil
}

// normalizeCode отбрасывает пробелы и дефисы, оставляя только цифры.
func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
