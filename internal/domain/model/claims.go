package model

import "time"

// Виды сессионных токенов.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// SessionClaims — содержимое подписанного сессионного токена.
// Не персистится: живёт только внутри JWT.
// Access-токен дополнительно снимает снапшот mfa_enabled на момент
// выпуска — последующее включение/выключение MFA не инвалидирует
// уже выданный access-токен в пределах его срока жизни.
// Refresh-токен не несёт роль и mfa: они перечитываются из БД
// при каждой ротации.
type SessionClaims struct {
	// PrincipalID — UUID пользователя
	PrincipalID string
	// Username — имя пользователя
	Username string
	// Role — роль на момент выпуска (только access)
	Role string
	// TokenKind — вид токена (access, refresh)
	TokenKind string
	// MFAEnabled — снапшот состояния MFA (только access)
	MFAEnabled bool
	// ExpiresAt — время истечения
	ExpiresAt time.Time
}
