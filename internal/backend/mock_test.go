package backend

import (
	"context"
	"errors"
	"testing"

	"pii-vault-engine/internal/domain"
)

func TestMock_EnsureKeyIsStable(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	keyID := []byte{0x00, 0x00, 0x00, 0x01}
	first, err := m.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	second, err := m.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if first != second {
		t.Error("EnsureKey must return the same material for the same key id")
	}

	var zero domain.KeyMaterial
	if first == zero {
		t.Error("generated material must not be all zero")
	}
}

func TestMock_EnsureKeyDistinctPerKeyID(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	a, err := m.EnsureKey(ctx, []byte{0x01})
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	b, err := m.EnsureKey(ctx, []byte{0x02})
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if a == b {
		t.Error("different key ids must get independent material")
	}
}

func TestMock_FetchKey(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	keyID := []byte{0x01}
	if _, err := m.FetchKey(ctx, keyID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound before ensure, got %v", err)
	}

	created, err := m.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	fetched, err := m.FetchKey(ctx, keyID)
	if err != nil {
		t.Fatalf("FetchKey failed: %v", err)
	}
	if created != fetched {
		t.Error("FetchKey must return the ensured material")
	}
}

func TestMock_DeleteKey(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	keyID := []byte{0x01}
	if err := m.DeleteKey(ctx, keyID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound deleting absent key, got %v", err)
	}

	before, err := m.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if err := m.DeleteKey(ctx, keyID); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	if _, err := m.FetchKey(ctx, keyID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound after delete, got %v", err)
	}

	// 削除後のEnsureKeyは新しい素材を生成する
	after, err := m.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if before == after {
		t.Error("material after delete must be freshly generated")
	}
}
