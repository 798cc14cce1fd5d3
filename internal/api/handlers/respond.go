// respond.go — общие помощники обработчиков: JSON-ответы,
// разбор тела запроса, маппинг ошибок бизнес-логики в HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/gosecvault/internal/access"
	apierrors "github.com/bigkaa/gosecvault/internal/api/errors"
	"github.com/bigkaa/gosecvault/internal/kms"
	"github.com/bigkaa/gosecvault/internal/mfa"
	"github.com/bigkaa/gosecvault/internal/service"
)

// maxJSONBody — предел размера JSON-тела запроса.
const maxJSONBody = 1 << 20 // 1 MiB

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON разбирает JSON-тело запроса в v.
// При ошибке сам пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierrors.ValidationError(w, "Невалидное JSON-тело запроса")
		return false
	}
	return true
}

// writeDomainError маппит ошибки бизнес-логики в HTTP-ответы.
// Неопознанные ошибки логируются и уходят как 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUsernameTaken):
		apierrors.Conflict(w, service.ErrUsernameTaken.Error())
	case errors.Is(err, service.ErrMFACodeRequired):
		apierrors.MFARequired(w, service.ErrMFACodeRequired.Error())
	case errors.Is(err, service.ErrNotOwner):
		apierrors.Forbidden(w, service.ErrNotOwner.Error())
	case errors.Is(err, service.ErrSelfShare):
		apierrors.ValidationError(w, service.ErrSelfShare.Error())
	case errors.Is(err, service.ErrDuplicateGrant):
		apierrors.Conflict(w, service.ErrDuplicateGrant.Error())
	case errors.Is(err, service.ErrGranteeNotFound):
		apierrors.NotFound(w, service.ErrGranteeNotFound.Error())

	case errors.Is(err, mfa.ErrAlreadyEnrolled):
		apierrors.Conflict(w, mfa.ErrAlreadyEnrolled.Error())
	case errors.Is(err, mfa.ErrNotEnrolled):
		apierrors.ValidationError(w, mfa.ErrNotEnrolled.Error())
	case errors.Is(err, mfa.ErrInvalidCode):
		apierrors.Unauthorized(w, mfa.ErrInvalidCode.Error())

	case errors.Is(err, kms.ErrKeyNotFound):
		apierrors.NotFound(w, kms.ErrKeyNotFound.Error())
	case errors.Is(err, kms.ErrAccessDenied):
		apierrors.Forbidden(w, kms.ErrAccessDenied.Error())
	case errors.Is(err, kms.ErrDecryptionFailed):
		apierrors.DecryptionFailed(w, kms.ErrDecryptionFailed.Error())
	case errors.Is(err, kms.ErrSelfDelegation):
		apierrors.ValidationError(w, kms.ErrSelfDelegation.Error())
	case errors.Is(err, kms.ErrDelegateNotFound):
		apierrors.NotFound(w, kms.ErrDelegateNotFound.Error())

	case errors.Is(err, access.ErrNoAccess):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, access.ErrInsufficientPermission):
		apierrors.Forbidden(w, access.ErrInsufficientPermission.Error())
	case errors.Is(err, access.ErrInvalidOrExpiredLink):
		apierrors.LinkInvalid(w, access.ErrInvalidOrExpiredLink.Error())

	default:
		logger.Error("необработанная ошибка",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}
