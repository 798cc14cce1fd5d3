package model

import "time"

// File — запись зашифрованного файла.
// Хранится в таблице files. Байты лежат в filestore под StorageLocator,
// ядро хранит только метаданные и зашифрованный симметричный ключ.
type File struct {
	// ID — UUID файла
	ID string
	// FileName — имя файла, заданное владельцем
	FileName string
	// StorageLocator — локатор зашифрованного содержимого в filestore
	StorageLocator string
	// OwnerID — UUID владельца (неизменяем после создания)
	OwnerID string
	// OwnerUsername — имя владельца (денормализовано для выдачи)
	OwnerUsername string
	// EncryptedKey — зашифрованный AES-ключ (шифруется на клиенте)
	EncryptedKey string
	// CreatedAt — время загрузки
	CreatedAt time.Time
}
