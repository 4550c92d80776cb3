package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"pii-vault-engine/internal/domain"
)

// mockTransitKeyRepository はTransitKeyRepositoryのテスト用実装。
type mockTransitKeyRepository struct {
	keys      map[string]*domain.TransitKey
	createErr error
	findErr   error
}

func newMockTransitKeyRepository() *mockTransitKeyRepository {
	return &mockTransitKeyRepository{keys: map[string]*domain.TransitKey{}}
}

func (m *mockTransitKeyRepository) Create(ctx context.Context, key *domain.TransitKey) error {
	if m.createErr != nil {
		return m.createErr
	}
	id := key.Mount + "/" + key.Name
	if _, ok := m.keys[id]; ok {
		return domain.ErrKeyAlreadyExists
	}
	copied := *key
	m.keys[id] = &copied
	return nil
}

func (m *mockTransitKeyRepository) FindByMountAndName(ctx context.Context, mount, name string) (*domain.TransitKey, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	key, ok := m.keys[mount+"/"+name]
	if !ok {
		return nil, nil
	}
	copied := *key
	return &copied, nil
}

func (m *mockTransitKeyRepository) DeleteByMountAndName(ctx context.Context, mount, name string) (bool, error) {
	id := mount + "/" + name
	if _, ok := m.keys[id]; !ok {
		return false, nil
	}
	delete(m.keys, id)
	return true, nil
}

func TestTransitService_CreateKey(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	service := NewTransitService(repo)

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}

	created := repo.keys["transit/key1"]
	if created == nil {
		t.Fatal("key was not stored")
	}
	if len(created.Key) != domain.KeySize {
		t.Errorf("want %d byte material, got %d", domain.KeySize, len(created.Key))
	}
	if !created.Exportable {
		t.Error("key must be exportable")
	}
}

func TestTransitService_CreateKeyIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	service := NewTransitService(repo)

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	first := repo.keys["transit/key1"].Key

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Fatalf("second CreateKey failed: %v", err)
	}
	if !bytes.Equal(repo.keys["transit/key1"].Key, first) {
		t.Error("existing material must not be replaced")
	}
}

func TestTransitService_CreateKeyRaceLost(t *testing.T) {
	// 作成レースに負けた場合（ユニーク制約違反）はエラーにしない。
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	repo.createErr = domain.ErrKeyAlreadyExists
	service := NewTransitService(repo)

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Errorf("race-lost create must succeed, got %v", err)
	}
}

func TestTransitService_ExportKey(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	service := NewTransitService(repo)

	if _, err := service.ExportKey(ctx, "transit", "missing"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound, got %v", err)
	}

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	material, err := service.ExportKey(ctx, "transit", "key1")
	if err != nil {
		t.Fatalf("ExportKey failed: %v", err)
	}
	if !bytes.Equal(material, repo.keys["transit/key1"].Key) {
		t.Error("exported material must match stored material")
	}
}

func TestTransitService_ExportKeyNotExportable(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	service := NewTransitService(repo)

	if err := service.CreateKey(ctx, "transit", "sealed-only", false); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	if _, err := service.ExportKey(ctx, "transit", "sealed-only"); !errors.Is(err, domain.ErrKeyNotExportable) {
		t.Errorf("want ErrKeyNotExportable, got %v", err)
	}
}

func TestTransitService_DeleteKey(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	service := NewTransitService(repo)

	if err := service.DeleteKey(ctx, "transit", "missing"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound, got %v", err)
	}

	if err := service.CreateKey(ctx, "transit", "key1", true); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	if err := service.DeleteKey(ctx, "transit", "key1"); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	if _, err := service.ExportKey(ctx, "transit", "key1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound after delete, got %v", err)
	}
}

func TestTransitService_RepositoryErrorWrapped(t *testing.T) {
	ctx := context.Background()
	repo := newMockTransitKeyRepository()
	repo.findErr = errors.New("db down")
	service := NewTransitService(repo)

	if err := service.CreateKey(ctx, "transit", "key1", true); err == nil {
		t.Error("want error when repository fails")
	}
	if _, err := service.ExportKey(ctx, "transit", "key1"); err == nil {
		t.Error("want error when repository fails")
	}
}
