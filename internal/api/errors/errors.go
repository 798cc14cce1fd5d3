// Пакет errors — конструкторы стандартных ошибок HTTP API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeMFARequired      = "MFA_REQUIRED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeLinkInvalid      = "LINK_INVALID"
	CodeDecryptionFailed = "DECRYPTION_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// SessionExpired — 401 оба токена мертвы, требуется повторный вход.
// Отдельный код, чтобы клиент знал: нужно сбросить cookie.
func SessionExpired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeSessionExpired, message)
}

// MFARequired — 403 операция требует включённой MFA.
func MFARequired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeMFARequired, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// LinkInvalid — 404 ссылка недействительна или истекла.
// Несуществующий и истёкший токены не различаются.
func LinkInvalid(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeLinkInvalid, message)
}

// DecryptionFailed — 400 непрозрачный отказ расшифровки.
func DecryptionFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeDecryptionFailed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
