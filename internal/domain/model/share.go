package model

import "time"

// Типы разрешений на файл.
// Разрешение сравнивается строго: DOWNLOAD не включает VIEW и наоборот.
const (
	PermissionView     = "VIEW"
	PermissionDownload = "DOWNLOAD"
)

// IsValidPermission проверяет, является ли строка допустимым разрешением.
func IsValidPermission(p string) bool {
	return p == PermissionView || p == PermissionDownload
}

// ShareGrant — прямая выдача доступа к файлу конкретному пользователю.
// Хранится в таблице share_grants.
// Инвариант: не более одной записи на пару (file_id, grantee_username).
type ShareGrant struct {
	// ID — UUID записи
	ID string
	// FileID — UUID файла
	FileID string
	// GranteeUsername — имя пользователя, которому выдан доступ
	GranteeUsername string
	// GrantorID — UUID выдавшего (владелец файла)
	GrantorID string
	// Permission — разрешение (VIEW, DOWNLOAD)
	Permission string
	// CreatedAt — время выдачи
	CreatedAt time.Time
}

// ShareLink — ссылка-капабилити на файл с неугадываемым токеном.
// Хранится в таблице share_links. Ссылка без expires_at бессрочна.
// Срок проверяется в момент использования, фоновой чистки нет.
type ShareLink struct {
	// ID — UUID записи
	ID string
	// FileID — UUID файла
	FileID string
	// Token — уникальный неугадываемый токен
	Token string
	// ExpiresAt — время истечения (nil — бессрочная)
	ExpiresAt *time.Time
	// CreatorID — UUID создателя ссылки
	CreatorID string
	// CreatedAt — время создания
	CreatedAt time.Time
}

// Expired сообщает, истекла ли ссылка на момент now.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
