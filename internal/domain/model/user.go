// Пакет model — доменные модели Secure Vault.
package model

import "time"

// User — пользователь системы.
// Хранится в таблице users.
type User struct {
	// ID — UUID пользователя
	ID string
	// Username — уникальное имя пользователя
	Username string
	// PasswordHash — bcrypt-хеш пароля
	PasswordHash string
	// Role — роль (ADMIN, USER, GUEST)
	Role string
	// MFASecret — TOTP-секрет (nil — MFA не настроена)
	MFASecret *string
	// Active — активен ли аккаунт
	Active bool
	// CreatedAt — время создания
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// MFAEnabled сообщает, включена ли у пользователя MFA.
// Наличие секрета означает активную MFA — отдельного
// состояния «ожидает подтверждения» нет.
func (u *User) MFAEnabled() bool {
	return u.MFASecret != nil && *u.MFASecret != ""
}
