// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidCredentials — неверная пара логин/пароль.
	// Несуществующий пользователь и неверный пароль не различаются.
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	// ErrUsernameTaken — имя пользователя уже занято.
	ErrUsernameTaken = errors.New("имя пользователя уже занято")
	// ErrMFACodeRequired — у пользователя включена MFA, вход требует код.
	ErrMFACodeRequired = errors.New("требуется код подтверждения MFA")
	// ErrNotOwner — операция доступна только владельцу файла.
	ErrNotOwner = errors.New("операция доступна только владельцу файла")
	// ErrSelfShare — выдача доступа самому себе запрещена.
	ErrSelfShare = errors.New("нельзя выдать доступ самому себе")
	// ErrDuplicateGrant — файл уже расшарен этому пользователю.
	// Повторная выдача не перезаписывает разрешение.
	ErrDuplicateGrant = errors.New("файл уже расшарен этому пользователю")
	// ErrGranteeNotFound — получатель выдачи не существует.
	ErrGranteeNotFound = errors.New("получатель не найден")
)
