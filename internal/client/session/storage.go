package session

import (
	"context"

	"github.com/dmitrijs2005/mycocore/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mycocore/internal/common"
)

// TokenStorage is the durable access-token slot. Get returns "" when empty.
type TokenStorage interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// SlotStorage keeps the token under a single metadata key.
type SlotStorage struct {
	repo metadata.Repository
	key  string
}

func NewSlotStorage(repo metadata.Repository) *SlotStorage {
	return &SlotStorage{repo: repo, key: common.AccessTokenSlotKey}
}

func (s *SlotStorage) Get(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *SlotStorage) Set(ctx context.Context, token string) error {
	return s.repo.Set(ctx, s.key, []byte(token))
}

func (s *SlotStorage) Delete(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key)
}
