// Пакет access — разрешение доступа к файлам.
// Три источника права: владение, прямая выдача (строгое совпадение
// разрешения) и ссылка-капабилити (неявный полный доступ).
// Порядок проверки фиксирован: владелец → ссылка → выдача.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

var (
	// ErrNoAccess — у субъекта нет никакого права на файл.
	ErrNoAccess = errors.New("нет доступа к файлу")
	// ErrInsufficientPermission — выдача есть, но не та: разрешения
	// сравниваются строго, DOWNLOAD не включает VIEW и наоборот.
	ErrInsufficientPermission = errors.New("недостаточное разрешение")
	// ErrInvalidOrExpiredLink — ссылка не существует или истекла.
	// Случаи не различаются, чтобы токен нельзя было прощупывать.
	ErrInvalidOrExpiredLink = errors.New("ссылка недействительна или истекла")
)

// Источники права доступа.
const (
	// SourceOwner — субъект владеет файлом.
	SourceOwner = "OWNER"
	// SourceGrant — прямая выдача.
	SourceGrant = "GRANT"
	// SourceLink — доступ получен по ссылке-капабилити.
	SourceLink = "LINK"
)

// Resolution — положительный исход разрешения доступа.
type Resolution struct {
	// Source — источник права (OWNER, GRANT, LINK).
	Source string
	// Permission — разрешение выдачи; пусто для владельца и ссылки.
	Permission string
}

// Resolver — движок разрешения доступа.
type Resolver struct {
	shares repository.ShareRepository
	links  repository.LinkRepository
	logger *slog.Logger

	// now — источник времени для проверки срока ссылок
	now func() time.Time
}

// NewResolver создаёт движок разрешения доступа.
func NewResolver(
	shares repository.ShareRepository,
	links repository.LinkRepository,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		shares: shares,
		links:  links,
		logger: logger.With(slog.String("component", "access_resolver")),
		now:    time.Now,
	}
}

// Resolve разрешает доступ субъекта к файлу.
// required — требуемое разрешение (VIEW, DOWNLOAD) или пустая строка,
// если достаточно любого права. viaLink — запрос пришёл по валидной
// ссылке-капабилити: она даёт неявный полный доступ и удовлетворяет
// любому required без записи в share_grants.
func (r *Resolver) Resolve(
	ctx context.Context,
	principal *model.User,
	file *model.File,
	required string,
	viaLink bool,
) (*Resolution, error) {
	// Владелец может всё
	if principal != nil && principal.ID == file.OwnerID {
		return &Resolution{Source: SourceOwner}, nil
	}

	if viaLink {
		return &Resolution{Source: SourceLink}, nil
	}

	if principal == nil {
		return nil, ErrNoAccess
	}

	grant, err := r.shares.GetByFileAndGrantee(ctx, file.ID, principal.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAccess
		}
		return nil, err
	}

	if required != "" && grant.Permission != required {
		r.logger.Debug("выдача не покрывает требуемое разрешение",
			slog.String("file_id", file.ID),
			slog.String("grantee", principal.Username),
			slog.String("granted", grant.Permission),
			slog.String("required", required),
		)
		return nil, ErrInsufficientPermission
	}

	return &Resolution{Source: SourceGrant, Permission: grant.Permission}, nil
}

// ResolveLink разрешает ссылку-капабилити по токену.
// Срок проверяется здесь, в момент использования: истёкшие записи
// остаются в БД, но перестают действовать.
func (r *Resolver) ResolveLink(ctx context.Context, linkToken string) (*model.ShareLink, error) {
	link, err := r.links.GetByToken(ctx, linkToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredLink
		}
		return nil, err
	}

	if link.Expired(r.now()) {
		return nil, ErrInvalidOrExpiredLink
	}
	return link, nil
}

// EffectivePermission возвращает действующее право субъекта на файл
// для отображения клиенту: OWNER, LINK (полный доступ по ссылке),
// VIEW, DOWNLOAD или ErrNoAccess.
func (r *Resolver) EffectivePermission(ctx context.Context, principal *model.User, file *model.File, viaLink bool) (string, error) {
	res, err := r.Resolve(ctx, principal, file, "", viaLink)
	if err != nil {
		return "", err
	}
	if res.Source == SourceGrant {
		return res.Permission, nil
	}
	return res.Source, nil
}
