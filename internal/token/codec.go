// Пакет token — кодирование и декодирование JWT сессионных токенов.
// Токены самоподписанные (HS256), без внешнего IdP: сервис сам выпускает
// и валидирует обе разновидности — access и refresh.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// ErrInvalidToken — токен не прошёл валидацию: подпись, срок, issuer
// или структура claims. Причина наружу не раскрывается.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// sessionClaims — raw claims JWT для парсинга.
type sessionClaims struct {
	jwt.RegisteredClaims
	// Username — имя пользователя на момент выпуска.
	Username string `json:"username"`
	// Role — роль пользователя на момент выпуска.
	Role string `json:"role"`
	// TokenKind — разновидность токена: access или refresh.
	TokenKind string `json:"token_kind"`
	// MFAEnabled — была ли включена MFA на момент выпуска (только access).
	MFAEnabled bool `json:"mfa_enabled,omitempty"`
}

// Codec — кодек сессионных JWT с симметричным ключом.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewCodec создаёт кодек.
// secret — симметричный ключ подписи HS256 (SV_JWT_SECRET).
// issuer — значение iss в выпускаемых токенах (SV_JWT_ISSUER).
// leeway — допустимое отклонение времени при проверке (SV_JWT_LEEWAY).
func NewCodec(secret []byte, issuer string, leeway time.Duration) *Codec {
	return &Codec{
		secret: secret,
		issuer: issuer,
		leeway: leeway,
	}
}

// Encode подписывает claims и возвращает компактный JWT.
// iat выставляется текущим временем, exp — по claims.ExpiresAt.
func (c *Codec) Encode(claims *model.SessionClaims) (string, error) {
	raw := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.PrincipalID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Username:  claims.Username,
		Role:      claims.Role,
		TokenKind: claims.TokenKind,
	}
	// mfa_enabled несёт только access-токен
	if claims.TokenKind == model.TokenKindAccess {
		raw.MFAEnabled = claims.MFAEnabled
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, raw)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Decode валидирует компактный JWT и возвращает claims.
// Проверяются: подпись (только HS256), exp (обязателен), iss и leeway.
// Любая причина отказа сворачивается в ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (*model.SessionClaims, error) {
	raw := &sessionClaims{}
	t, err := jwt.ParseWithClaims(tokenString, raw,
		func(_ *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}

	if raw.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrInvalidToken)
	}
	if raw.TokenKind != model.TokenKindAccess && raw.TokenKind != model.TokenKindRefresh {
		return nil, fmt.Errorf("%w: неизвестный token_kind", ErrInvalidToken)
	}

	claims := &model.SessionClaims{
		PrincipalID: raw.Subject,
		Username:    raw.Username,
		Role:        raw.Role,
		TokenKind:   raw.TokenKind,
		MFAEnabled:  raw.MFAEnabled,
	}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
	}
	return claims, nil
}
