package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/gosecvault/internal/access"
	"github.com/bigkaa/gosecvault/internal/api/handlers"
	"github.com/bigkaa/gosecvault/internal/api/middleware"
	"github.com/bigkaa/gosecvault/internal/config"
	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/domain/rbac"
	"github.com/bigkaa/gosecvault/internal/kms"
	"github.com/bigkaa/gosecvault/internal/mfa"
	"github.com/bigkaa/gosecvault/internal/repository"
	"github.com/bigkaa/gosecvault/internal/service"
	"github.com/bigkaa/gosecvault/internal/session"
	"github.com/bigkaa/gosecvault/internal/storage/filestore"
	"github.com/bigkaa/gosecvault/internal/token"
)

// Фейковые репозитории поверх map — маршруты проверяются на живом
// роутере без PostgreSQL.

type fakeUserRepo struct {
	byID       map[string]*model.User
	byUsername map[string]*model.User
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := r.byUsername[u.Username]; ok {
		return repository.ErrConflict
	}
	r.byID[u.ID] = u
	r.byUsername[u.Username] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := r.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) SetMFASecret(_ context.Context, id string, secret *string) error {
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.MFASecret = secret
	return nil
}

func (r *fakeUserRepo) SetRole(_ context.Context, id, role string) error {
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byUsername, u.Username)
	delete(r.byID, id)
	return nil
}

type fakeFileRepo struct {
	byID map[string]*model.File
}

func (r *fakeFileRepo) Create(_ context.Context, f *model.File) error {
	r.byID[f.ID] = f
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id string) (*model.File, error) {
	f, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f, nil
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.File, error) {
	var result []*model.File
	for _, f := range r.byID {
		if f.OwnerID == ownerID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (r *fakeFileRepo) ListSharedWith(_ context.Context, _ string) ([]*model.File, error) {
	return nil, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

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

type fakeKeyRepo struct {
	records map[string]*model.KeyRecord
}

func (r *fakeKeyRepo) CreateIfAbsent(_ context.Context, k *model.KeyRecord) (bool, error) {
	if _, ok := r.records[k.OwnerUsername]; ok {
		return false, nil
	}
	r.records[k.OwnerUsername] = k
	return true, nil
}

func (r *fakeKeyRepo) GetByOwner(_ context.Context, owner string) (*model.KeyRecord, error) {
	k, ok := r.records[owner]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return k, nil
}

type fakeDelegationRepo struct {
	grants map[string]bool
}

func (r *fakeDelegationRepo) Upsert(_ context.Context, g *model.DelegationGrant) error {
	r.grants[g.KeyOwnerUsername+"/"+g.DelegateUsername] = true
	return nil
}

func (r *fakeDelegationRepo) Exists(_ context.Context, owner, delegate string) (bool, error) {
	return r.grants[owner+"/"+delegate], nil
}

func (r *fakeDelegationRepo) Delete(_ context.Context, owner, delegate string) error {
	delete(r.grants, owner+"/"+delegate)
	return nil
}

func (r *fakeDelegationRepo) ListByOwner(_ context.Context, _ string) ([]*model.DelegationGrant, error) {
	return nil, nil
}

// testEnv — живой роутер над фейковыми репозиториями.
type testEnv struct {
	handler  http.Handler
	users    *fakeUserRepo
	links    *fakeLinkRepo
	sessions *session.Manager
	fileSvc  *service.FileService
	linkSvc  *service.LinkService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := &fakeUserRepo{byID: map[string]*model.User{}, byUsername: map[string]*model.User{}}
	fileRepo := &fakeFileRepo{byID: map[string]*model.File{}}
	shareRepo := &fakeShareRepo{grants: map[string]*model.ShareGrant{}}
	linkRepo := &fakeLinkRepo{links: map[string]*model.ShareLink{}}
	keyRepo := &fakeKeyRepo{records: map[string]*model.KeyRecord{}}
	delegationRepo := &fakeDelegationRepo{grants: map[string]bool{}}

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("инициализация filestore: %v", err)
	}

	codec := token.NewCodec([]byte("test-secret-для-юнит-тестов-0123456789"), "gosecvault", 0)
	sessions := session.NewManager(codec, users, 15*time.Minute, 7*24*time.Hour, logger)
	mfaEngine := mfa.NewEngine(users, "SecureVault", 1, logger)
	resolver := access.NewResolver(shareRepo, linkRepo, logger)
	broker := kms.NewBroker(keyRepo, delegationRepo, users, 16, time.Minute, logger)

	authService := service.NewAuthService(users, mfaEngine, logger)
	fileService := service.NewFileService(fileRepo, store, logger)
	shareService := service.NewShareService(shareRepo, users, logger)
	linkService := service.NewLinkService(linkRepo, time.Hour, logger)

	sessionAuth := middleware.NewSessionAuth(sessions, false, logger)
	fileGuard := middleware.NewFileGuard(fileService, resolver, logger)

	h := Handlers{
		Health: handlers.NewHealthHandler(nil),
		Auth:   handlers.NewAuthHandler(authService, sessions, sessionAuth, logger),
		MFA:    handlers.NewMFAHandler(mfaEngine, logger),
		Files:  handlers.NewFileHandler(fileService, resolver, 1<<20, logger),
		Shares: handlers.NewShareHandler(shareService, logger),
		Links:  handlers.NewLinkHandler(linkService, fileService, resolver, logger),
		KMS:    handlers.NewKMSHandler(broker, logger),
	}

	srv := New(&config.Config{Port: 8000}, logger, h, sessionAuth, fileGuard)
	return &testEnv{
		handler:  srv.httpServer.Handler,
		users:    users,
		links:    linkRepo,
		sessions: sessions,
		fileSvc:  fileService,
		linkSvc:  linkService,
	}
}

// addUser регистрирует пользователя напрямую в фейковом репозитории.
func (e *testEnv) addUser(t *testing.T, username string, withMFA bool) *model.User {
	t.Helper()
	u := &model.User{ID: "u-" + username, Username: username, Role: rbac.RoleUser, Active: true}
	if withMFA {
		secret := "JBSWY3DPEHPK3PXP"
		u.MFASecret = &secret
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("создание пользователя %s: %v", username, err)
	}
	return u
}

// request выполняет запрос от имени пользователя (nil — без сессии).
func (e *testEnv) request(t *testing.T, method, target string, u *model.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if u != nil {
		accessToken, refreshToken, err := e.sessions.Issue(u)
		if err != nil {
			t.Fatalf("выпуск сессии: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: middleware.CookieAccess, Value: accessToken})
		req.AddCookie(&http.Cookie{Name: middleware.CookieRefresh, Value: refreshToken})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// errorCode извлекает error.code из тела ответа.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ответа не JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

// TestRouter_MFAGate — файловые и KMS маршруты закрыты без включённой MFA.
func TestRouter_MFAGate(t *testing.T) {
	env := newTestEnv(t)
	bare := env.addUser(t, "alice", false)

	gated := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/files/list"},
		{http.MethodPost, "/api/v1/files/upload"},
		{http.MethodGet, "/api/v1/files/shares/me"},
		{http.MethodGet, "/api/v1/files/links/verify?token=x"},
		{http.MethodPost, "/api/v1/kms/key"},
		{http.MethodPost, "/api/v1/kms/decrypt"},
		{http.MethodPost, "/api/v1/kms/access/grant"},
		{http.MethodGet, "/api/v1/kms/access/list"},
	}
	for _, tt := range gated {
		rec := env.request(t, tt.method, tt.target, bare)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s без MFA: статус = %d, ожидался 403", tt.method, tt.target, rec.Code)
			continue
		}
		if got := errorCode(t, rec); got != "MFA_REQUIRED" {
			t.Errorf("%s %s: код ошибки = %s, ожидался MFA_REQUIRED", tt.method, tt.target, got)
		}
	}

	// Сессионные маршруты и управление MFA остаются доступными
	if rec := env.request(t, http.MethodGet, "/api/v1/auth/me", bare); rec.Code != http.StatusOK {
		t.Errorf("GET /auth/me без MFA: статус = %d, ожидался 200", rec.Code)
	}
	if rec := env.request(t, http.MethodPost, "/api/v1/auth/mfa/setup", bare); rec.Code == http.StatusForbidden {
		t.Error("POST /auth/mfa/setup не должен требовать уже включённой MFA")
	}

	// После включения MFA файловые маршруты открываются
	secret := "JBSWY3DPEHPK3PXP"
	bare.MFASecret = &secret
	if rec := env.request(t, http.MethodGet, "/api/v1/files/list", bare); rec.Code != http.StatusOK {
		t.Errorf("GET /files/list с MFA: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestRouter_LinkDownload — токен ссылки даёт скачивание без прямой выдачи.
func TestRouter_LinkDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.addUser(t, "alice", true)
	holder := env.addUser(t, "carol", true)

	content := []byte("зашифрованное содержимое")
	f, err := env.fileSvc.Upload(ctx, owner, "report.pdf.enc", "enc-key", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("загрузка файла: %v", err)
	}
	link, err := env.linkSvc.Generate(ctx, owner, f, 0, false)
	if err != nil {
		t.Fatalf("создание ссылки: %v", err)
	}

	t.Run("без токена — 404", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download", holder)
		if rec.Code != http.StatusNotFound {
			t.Errorf("статус = %d, ожидался 404", rec.Code)
		}
	})

	t.Run("с токеном — содержимое отдаётся", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download?token="+link.Token, holder)
		if rec.Code != http.StatusOK {
			t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
		}
		if !bytes.Equal(rec.Body.Bytes(), content) {
			t.Error("содержимое не совпадает с загруженным")
		}
	})

	t.Run("метаданные и право по токену", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/v1/files/"+f.ID+"?token="+link.Token, holder)
		if rec.Code != http.StatusOK {
			t.Fatalf("метаданные: статус = %d", rec.Code)
		}

		rec = env.request(t, http.MethodGet, "/api/v1/files/"+f.ID+"/permission?token="+link.Token, holder)
		if rec.Code != http.StatusOK {
			t.Fatalf("permission: статус = %d", rec.Code)
		}
		var body struct {
			Permission string `json:"permission"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("тело ответа не JSON: %v", err)
		}
		if body.Permission != access.SourceLink {
			t.Errorf("permission = %s, ожидался LINK", body.Permission)
		}
	})

	t.Run("истёкший токен не даёт доступа", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Hour)
		env.links.links["dead-token"] = &model.ShareLink{
			ID: "l-dead", FileID: f.ID, Token: "dead-token", ExpiresAt: &past,
		}
		rec := env.request(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download?token=dead-token", holder)
		if rec.Code != http.StatusNotFound {
			t.Errorf("статус = %d, ожидался 404", rec.Code)
		}
	})

	t.Run("токен чужого файла не даёт доступа", func(t *testing.T) {
		other, err := env.fileSvc.Upload(ctx, owner, "other.enc", "enc-key", bytes.NewReader([]byte("другое")))
		if err != nil {
			t.Fatalf("загрузка второго файла: %v", err)
		}
		rec := env.request(t, http.MethodGet, "/api/v1/files/"+other.ID+"/download?token="+link.Token, holder)
		if rec.Code != http.StatusNotFound {
			t.Errorf("статус = %d, ожидался 404", rec.Code)
		}
	})
}
