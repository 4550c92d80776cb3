package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"pii-vault-engine/internal/domain"
)

// TransitKeyRepository はtransit鍵のデータアクセスのインターフェース。
type TransitKeyRepository interface {
	Create(ctx context.Context, key *domain.TransitKey) error
	FindByMountAndName(ctx context.Context, mount, name string) (*domain.TransitKey, error)
	DeleteByMountAndName(ctx context.Context, mount, name string) (bool, error)
}

// TransitService はdevvaultのtransit鍵に関するビジネスロジックを提供する。
type TransitService struct {
	repo TransitKeyRepository
}

// NewTransitService は新しいTransitServiceを生成する。
func NewTransitService(repo TransitKeyRepository) *TransitService {
	return &TransitService{repo: repo}
}

// generateAESKey はAES-256鍵を生成する。
func generateAESKey() ([]byte, error) {
	key := make([]byte, domain.KeySize)
	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	return key, nil
}

// CreateKey は指定されたマウント・鍵名の鍵を作成する。既に存在する場合は
// 何もしない（冪等）。同一鍵名への同時作成はユニーク制約によって
// first-writer-winsとなり、以降はその素材で一貫する。
func (s *TransitService) CreateKey(ctx context.Context, mount, name string, exportable bool) error {
	existing, err := s.repo.FindByMountAndName(ctx, mount, name)
	if err != nil {
		return fmt.Errorf("checking existing key: %w", err)
	}
	if existing != nil {
		return nil
	}

	material, err := generateAESKey()
	if err != nil {
		return err
	}

	key := &domain.TransitKey{
		Mount:      mount,
		Name:       name,
		Key:        material,
		Exportable: exportable,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		if errors.Is(err, domain.ErrKeyAlreadyExists) {
			// 作成レース負け。勝者の素材が正となる。
			return nil
		}
		return fmt.Errorf("creating key: %w", err)
	}
	return nil
}

// ExportKey は指定されたマウント・鍵名の生鍵素材を取得する。
// 存在しない場合は domain.ErrKeyNotFound、exportable指定なしで作成された鍵は
// domain.ErrKeyNotExportable。
func (s *TransitService) ExportKey(ctx context.Context, mount, name string) ([]byte, error) {
	key, err := s.repo.FindByMountAndName(ctx, mount, name)
	if err != nil {
		return nil, fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	if !key.Exportable {
		return nil, domain.ErrKeyNotExportable
	}
	return key.Key, nil
}

// DeleteKey は指定されたマウント・鍵名の鍵を削除する（crypto shredding）。
// 存在しない場合は domain.ErrKeyNotFound。
func (s *TransitService) DeleteKey(ctx context.Context, mount, name string) error {
	deleted, err := s.repo.DeleteByMountAndName(ctx, mount, name)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	if !deleted {
		return domain.ErrKeyNotFound
	}
	return nil
}
