// Пакет rbac — роли пользователей и грубая предварительная проверка
// «может ли роль вообще вызывать этот класс операций».
// Точное решение о доступе к конкретному файлу принимает access.Resolver,
// rbac срабатывает до него.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleGuest = "GUEST"
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// validRoles — множество допустимых ролей.
var validRoles = map[string]bool{
	RoleGuest: true,
	RoleUser:  true,
	RoleAdmin: true,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	return validRoles[role]
}

// Allowed проверяет, входит ли роль в набор разрешённых.
// Сравнение точное, без наследования привилегий: операция,
// открытая для USER, не открыта автоматически для ADMIN —
// набор перечисляется явно в точке подключения гейта.
func Allowed(role string, permitted ...string) bool {
	for _, p := range permitted {
		if role == p {
			return true
		}
	}
	return false
}
