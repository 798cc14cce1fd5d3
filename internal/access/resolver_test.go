package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

// fakeShareRepo — ShareRepository поверх map "fileID/grantee".
type fakeShareRepo struct {
	grants map[string]*model.ShareGrant
}

func (r *fakeShareRepo) Create(_ context.Context, g *model.ShareGrant) error {
	key := g.FileID + "/" + g.GranteeUsername
	if _, ok := r.grants[key]; ok {
		return repository.ErrConflict
	}
	r.grants[key] = g
	return nil
}

func (r *fakeShareRepo) GetByID(_ context.Context, id string) (*model.ShareGrant, error) {
	for _, g := range r.grants {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeShareRepo) GetByFileAndGrantee(_ context.Context, fileID, grantee string) (*model.ShareGrant, error) {
	g, ok := r.grants[fileID+"/"+grantee]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return g, nil
}

func (r *fakeShareRepo) ListByFile(_ context.Context, fileID string) ([]*model.ShareGrant, error) {
	var result []*model.ShareGrant
	for _, g := range r.grants {
		if g.FileID == fileID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (r *fakeShareRepo) UpdatePermission(_ context.Context, id, permission string) error {
	for _, g := range r.grants {
		if g.ID == id {
			g.Permission = permission
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeShareRepo) Delete(_ context.Context, id string) error {
	for k, g := range r.grants {
		if g.ID == id {
			delete(r.grants, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

// fakeLinkRepo — LinkRepository поверх map token → link.
type fakeLinkRepo struct {
	links map[string]*model.ShareLink
}

func (r *fakeLinkRepo) Create(_ context.Context, l *model.ShareLink) error {
	r.links[l.Token] = l
	return nil
}

func (r *fakeLinkRepo) GetByID(_ context.Context, id string) (*model.ShareLink, error) {
	for _, l := range r.links {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLinkRepo) GetByToken(_ context.Context, token string) (*model.ShareLink, error) {
	l, ok := r.links[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (r *fakeLinkRepo) ListByFile(_ context.Context, fileID string) ([]*model.ShareLink, error) {
	var result []*model.ShareLink
	for _, l := range r.links {
		if l.FileID == fileID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (r *fakeLinkRepo) Delete(_ context.Context, id string) error {
	for k, l := range r.links {
		if l.ID == id {
			delete(r.links, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

const (
	ownerID   = "6f1b0c5e-0000-4000-8000-0000000000aa"
	granteeID = "6f1b0c5e-0000-4000-8000-0000000000bb"
)

func testFile() *model.File {
	return &model.File{
		ID:            "f1",
		FileName:      "report.pdf.enc",
		OwnerID:       ownerID,
		OwnerUsername: "alice",
	}
}

func testResolver(shares *fakeShareRepo, links *fakeLinkRepo) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(shares, links, logger)
}

// TestResolver_Resolve — матрица владелец/выдача/ссылка/отказ.
func TestResolver_Resolve(t *testing.T) {
	shares := &fakeShareRepo{grants: map[string]*model.ShareGrant{
		"f1/bob": {ID: "g1", FileID: "f1", GranteeUsername: "bob", GrantorID: ownerID, Permission: model.PermissionView},
	}}
	r := testResolver(shares, &fakeLinkRepo{links: map[string]*model.ShareLink{}})

	owner := &model.User{ID: ownerID, Username: "alice"}
	bob := &model.User{ID: granteeID, Username: "bob"}
	carol := &model.User{ID: "cc", Username: "carol"}
	file := testFile()

	tests := []struct {
		name       string
		principal  *model.User
		required   string
		viaLink    bool
		wantSource string
		wantErr    error
	}{
		{
			name:       "владелец без required",
			principal:  owner,
			wantSource: SourceOwner,
		},
		{
			name:       "владелец с required DOWNLOAD",
			principal:  owner,
			required:   model.PermissionDownload,
			wantSource: SourceOwner,
		},
		{
			name:       "выдача VIEW покрывает required VIEW",
			principal:  bob,
			required:   model.PermissionView,
			wantSource: SourceGrant,
		},
		{
			name:       "выдача VIEW при любом required",
			principal:  bob,
			wantSource: SourceGrant,
		},
		{
			name:      "выдача VIEW не покрывает DOWNLOAD",
			principal: bob,
			required:  model.PermissionDownload,
			wantErr:   ErrInsufficientPermission,
		},
		{
			name:      "без выдачи — отказ",
			principal: carol,
			wantErr:   ErrNoAccess,
		},
		{
			name:       "ссылка даёт неявный полный доступ",
			principal:  carol,
			required:   model.PermissionDownload,
			viaLink:    true,
			wantSource: SourceLink,
		},
		{
			name:       "ссылка без принципала",
			required:   model.PermissionView,
			viaLink:    true,
			wantSource: SourceLink,
		},
		{
			name:    "аноним без ссылки — отказ",
			wantErr: ErrNoAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.principal, file, tt.required, tt.viaLink)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ожидалась ошибка %v, получено: %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve вернул ошибку: %v", err)
			}
			if res.Source != tt.wantSource {
				t.Errorf("Source = %s, ожидался %s", res.Source, tt.wantSource)
			}
		})
	}
}

// TestResolver_Resolve_PermissionUpgrade — смена выдачи VIEW → DOWNLOAD
// открывает скачивание следующим же запросом.
func TestResolver_Resolve_PermissionUpgrade(t *testing.T) {
	shares := &fakeShareRepo{grants: map[string]*model.ShareGrant{
		"f1/bob": {ID: "g1", FileID: "f1", GranteeUsername: "bob", GrantorID: ownerID, Permission: model.PermissionView},
	}}
	r := testResolver(shares, &fakeLinkRepo{links: map[string]*model.ShareLink{}})

	bob := &model.User{ID: granteeID, Username: "bob"}
	file := testFile()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, bob, file, model.PermissionDownload, false); !errors.Is(err, ErrInsufficientPermission) {
		t.Fatalf("до апгрейда ожидался ErrInsufficientPermission, получено: %v", err)
	}

	if err := shares.UpdatePermission(ctx, "g1", model.PermissionDownload); err != nil {
		t.Fatalf("UpdatePermission вернул ошибку: %v", err)
	}

	res, err := r.Resolve(ctx, bob, file, model.PermissionDownload, false)
	if err != nil {
		t.Fatalf("после апгрейда Resolve вернул ошибку: %v", err)
	}
	if res.Permission != model.PermissionDownload {
		t.Errorf("Permission = %s", res.Permission)
	}
}

// TestResolver_ResolveLink — существование и срок ссылки.
func TestResolver_ResolveLink(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	links := &fakeLinkRepo{links: map[string]*model.ShareLink{
		"live":    {ID: "l1", FileID: "f1", Token: "live", ExpiresAt: &future},
		"dead":    {ID: "l2", FileID: "f1", Token: "dead", ExpiresAt: &past},
		"eternal": {ID: "l3", FileID: "f1", Token: "eternal"},
	}}
	r := testResolver(&fakeShareRepo{grants: map[string]*model.ShareGrant{}}, links)
	r.now = func() time.Time { return now }

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "живая ссылка", token: "live"},
		{name: "бессрочная ссылка", token: "eternal"},
		{name: "истёкшая ссылка", token: "dead", wantErr: true},
		{name: "несуществующий токен", token: "нет-такого", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := r.ResolveLink(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOrExpiredLink) {
					t.Errorf("ожидался ErrInvalidOrExpiredLink, получено: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveLink вернул ошибку: %v", err)
			}
			if link.Token != tt.token {
				t.Errorf("разрешена не та ссылка: %s", link.Token)
			}
		})
	}
}

// TestResolver_ResolveLink_ExpiryBoundary — ссылка действует ровно до expires_at.
func TestResolver_ResolveLink_ExpiryBoundary(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	links := &fakeLinkRepo{links: map[string]*model.ShareLink{
		"edge": {ID: "l1", FileID: "f1", Token: "edge", ExpiresAt: &deadline},
	}}
	r := testResolver(&fakeShareRepo{grants: map[string]*model.ShareGrant{}}, links)

	r.now = func() time.Time { return deadline }
	if _, err := r.ResolveLink(context.Background(), "edge"); err != nil {
		t.Errorf("в момент expires_at ссылка ещё действует: %v", err)
	}

	r.now = func() time.Time { return deadline.Add(time.Second) }
	if _, err := r.ResolveLink(context.Background(), "edge"); !errors.Is(err, ErrInvalidOrExpiredLink) {
		t.Errorf("после expires_at ожидался ErrInvalidOrExpiredLink, получено: %v", err)
	}
}

// TestResolver_EffectivePermission — отображаемое право субъекта.
func TestResolver_EffectivePermission(t *testing.T) {
	shares := &fakeShareRepo{grants: map[string]*model.ShareGrant{
		"f1/bob": {ID: "g1", FileID: "f1", GranteeUsername: "bob", GrantorID: ownerID, Permission: model.PermissionDownload},
	}}
	r := testResolver(shares, &fakeLinkRepo{links: map[string]*model.ShareLink{}})
	file := testFile()
	ctx := context.Background()

	got, err := r.EffectivePermission(ctx, &model.User{ID: ownerID, Username: "alice"}, file, false)
	if err != nil || got != SourceOwner {
		t.Errorf("владелец: got %s, err %v", got, err)
	}

	got, err = r.EffectivePermission(ctx, &model.User{ID: granteeID, Username: "bob"}, file, false)
	if err != nil || got != model.PermissionDownload {
		t.Errorf("получатель: got %s, err %v", got, err)
	}

	got, err = r.EffectivePermission(ctx, &model.User{ID: "cc", Username: "carol"}, file, true)
	if err != nil || got != SourceLink {
		t.Errorf("держатель ссылки: got %s, err %v", got, err)
	}

	if _, err := r.EffectivePermission(ctx, &model.User{ID: "cc", Username: "carol"}, file, false); !errors.Is(err, ErrNoAccess) {
		t.Errorf("посторонний: ожидался ErrNoAccess, получено %v", err)
	}
}
