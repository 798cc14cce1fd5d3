package model

import "time"

// KeyRecord — RSA-ключевая пара на хранении у брокера ключей.
// Хранится в таблице key_records, ровно одна запись на username.
// Создаётся лениво при первом запросе, ротации нет — отсутствие
// записи и есть единственное состояние «не выдан».
type KeyRecord struct {
	// OwnerUsername — владелец ключа (первичный ключ)
	OwnerUsername string
	// PublicKey — публичный ключ в PEM (PKIX)
	PublicKey string
	// PrivateKey — приватный ключ в PEM (PKCS8)
	PrivateKey string
	// CreatedAt — время генерации
	CreatedAt time.Time
}

// DelegationGrant — отзывное разрешение делегату использовать
// приватный ключ владельца для расшифровки (без раскрытия ключа).
// Несимметрично: A→B не означает B→A.
// Инвариант: уникальна пара (key_owner_username, delegate_username).
type DelegationGrant struct {
	// ID — UUID записи
	ID string
	// KeyOwnerUsername — владелец ключа
	KeyOwnerUsername string
	// DelegateUsername — делегат
	DelegateUsername string
	// CreatedAt — время выдачи
	CreatedAt time.Time
}
