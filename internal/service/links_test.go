package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

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

func linkFixtures() (*LinkService, *model.User, *model.File) {
	owner := &model.User{ID: "u-owner", Username: "alice", Active: true}
	file := &model.File{ID: "f1", OwnerID: owner.ID, OwnerUsername: owner.Username}
	s := NewLinkService(&fakeLinkRepo{links: map[string]*model.ShareLink{}}, time.Hour, discardLogger())
	return s, owner, file
}

// TestLinkService_Generate — создание ссылки.
func TestLinkService_Generate(t *testing.T) {
	s, owner, file := linkFixtures()
	ctx := context.Background()

	t.Run("срок по умолчанию", func(t *testing.T) {
		before := time.Now().UTC()
		link, err := s.Generate(ctx, owner, file, 0, false)
		if err != nil {
			t.Fatalf("Generate вернул ошибку: %v", err)
		}
		if len(link.Token) < 40 {
			t.Errorf("токен подозрительно короткий: %d символов", len(link.Token))
		}
		if link.ExpiresAt == nil {
			t.Fatal("ссылка со сроком по умолчанию должна иметь expires_at")
		}
		got := link.ExpiresAt.Sub(before)
		if got < 59*time.Minute || got > 61*time.Minute {
			t.Errorf("срок по умолчанию должен быть ~1h, получено %v", got)
		}
	})

	t.Run("явный срок", func(t *testing.T) {
		link, err := s.Generate(ctx, owner, file, 10*time.Minute, false)
		if err != nil {
			t.Fatalf("Generate вернул ошибку: %v", err)
		}
		if link.ExpiresAt == nil {
			t.Fatal("ожидался expires_at")
		}
	})

	t.Run("бессрочная ссылка", func(t *testing.T) {
		link, err := s.Generate(ctx, owner, file, 0, true)
		if err != nil {
			t.Fatalf("Generate вернул ошибку: %v", err)
		}
		if link.ExpiresAt != nil {
			t.Error("бессрочная ссылка не должна иметь expires_at")
		}
	})

	t.Run("отрицательный срок", func(t *testing.T) {
		if _, err := s.Generate(ctx, owner, file, -time.Minute, false); !errors.Is(err, ErrValidation) {
			t.Errorf("ожидался ErrValidation, получено: %v", err)
		}
	})

	t.Run("не владелец", func(t *testing.T) {
		stranger := &model.User{ID: "u-x", Username: "mallory"}
		if _, err := s.Generate(ctx, stranger, file, 0, false); !errors.Is(err, ErrNotOwner) {
			t.Errorf("ожидался ErrNotOwner, получено: %v", err)
		}
	})

	t.Run("токены уникальны", func(t *testing.T) {
		a, err := s.Generate(ctx, owner, file, 0, false)
		if err != nil {
			t.Fatalf("Generate вернул ошибку: %v", err)
		}
		b, err := s.Generate(ctx, owner, file, 0, false)
		if err != nil {
			t.Fatalf("Generate вернул ошибку: %v", err)
		}
		if a.Token == b.Token {
			t.Error("два токена совпали")
		}
	})
}

// TestLinkService_Revoke — отзыв ссылки.
func TestLinkService_Revoke(t *testing.T) {
	s, owner, file := linkFixtures()
	ctx := context.Background()

	link, err := s.Generate(ctx, owner, file, 0, false)
	if err != nil {
		t.Fatalf("Generate вернул ошибку: %v", err)
	}

	t.Run("не владелец", func(t *testing.T) {
		stranger := &model.User{ID: "u-x", Username: "mallory"}
		if err := s.Revoke(ctx, stranger, file, link.ID); !errors.Is(err, ErrNotOwner) {
			t.Errorf("ожидался ErrNotOwner, получено: %v", err)
		}
	})

	t.Run("ссылка чужого файла не раскрывается", func(t *testing.T) {
		other := &model.File{ID: "f2", OwnerID: owner.ID}
		if err := s.Revoke(ctx, owner, other, link.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидался ErrNotFound, получено: %v", err)
		}
	})

	t.Run("успешный отзыв", func(t *testing.T) {
		if err := s.Revoke(ctx, owner, file, link.ID); err != nil {
			t.Fatalf("Revoke вернул ошибку: %v", err)
		}
		if err := s.Revoke(ctx, owner, file, link.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("повторный отзыв: ожидался ErrNotFound, получено: %v", err)
		}
	})
}
