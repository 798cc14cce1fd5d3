// Пакет service — бизнес-логика SecureVault.
// auth.go — регистрация и вход по паролю с опциональным вторым фактором.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/domain/rbac"
	"github.com/bigkaa/gosecvault/internal/mfa"
	"github.com/bigkaa/gosecvault/internal/repository"
)

// Границы валидации учётных данных.
const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
	maxPasswordLen = 72 // предел bcrypt
)

// AuthService — сервис регистрации и входа.
type AuthService struct {
	users  repository.UserRepository
	mfa    *mfa.Engine
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, mfaEngine *mfa.Engine, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		mfa:    mfaEngine,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт пользователя. Пустая роль означает USER;
// роль ADMIN при саморегистрации не выдаётся.
// Пароль хэшируется bcrypt с cost по умолчанию.
func (s *AuthService) Register(ctx context.Context, username, password, role string) (*model.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if role == "" {
		role = rbac.RoleUser
	}
	if !rbac.IsValidRole(role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, role)
	}
	if role == rbac.RoleAdmin {
		return nil, fmt.Errorf("%w: роль ADMIN назначается только администратором", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("зарегистрирован пользователь",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", u.Role),
	)
	return u, nil
}

// ChangeRole изменяет роль пользователя. Вызывается только из
// административных маршрутов — проверку прав выполняет гейт ролей.
func (s *AuthService) ChangeRole(ctx context.Context, username, role string) (*model.User, error) {
	if !rbac.IsValidRole(role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, role)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.users.SetRole(ctx, u.ID, role); err != nil {
		return nil, err
	}
	u.Role = role

	s.logger.Info("изменена роль пользователя",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", role),
	)
	return u, nil
}

// Login проверяет пару логин/пароль и, при включённой MFA, код TOTP.
// Несуществующий пользователь и неверный пароль дают одинаковый отказ.
func (s *AuthService) Login(ctx context.Context, username, password, totpCode string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Выравниваем время ответа: хэшируем и для несуществующих
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0WZv8mGVGUVvQpTzFQO4cBW0y0C"),
				[]byte(password),
			)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("неудачная попытка входа",
			slog.String("username", username),
		)
		return nil, ErrInvalidCredentials
	}

	if !u.Active {
		return nil, ErrInvalidCredentials
	}

	if u.MFAEnabled() {
		if totpCode == "" {
			return nil, ErrMFACodeRequired
		}
		if err := s.mfa.Verify(u, totpCode); err != nil {
			return nil, err
		}
	}

	s.logger.Info("успешный вход",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, nil
}

// validateUsername проверяет имя пользователя: длина и алфавит.
func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return fmt.Errorf("%w: имя пользователя должно быть от %d до %d символов",
			ErrValidation, minUsernameLen, maxUsernameLen)
	}
	for _, r := range username {
		valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
		if !valid {
			return fmt.Errorf("%w: имя пользователя содержит недопустимый символ %q", ErrValidation, r)
		}
	}
	return nil
}

// validatePassword проверяет длину пароля.
func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: пароль должен быть не короче %d символов", ErrValidation, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: пароль должен быть не длиннее %d символов", ErrValidation, maxPasswordLen)
	}
	return nil
}
