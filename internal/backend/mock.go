// Package backend は鍵バックエンドの実装を提供する。
// プロセス内モック（テスト・ローカル開発用）とVault transit互換の
// リモートクライアントの2種がある。どちらも鍵素材の保管のみを担い、
// AES-GCMの暗号操作自体はローカルのcryptoパッケージが行う。
package backend

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"pii-vault-engine/internal/domain"
)

// Mock はプロセス内の鍵バックエンド。鍵素材は最初のEnsureKeyで生成され、
// プロセスの生存期間だけメモリに保持される。再起動を跨いだ永続化はしない。
// DeleteKeyでcrypto shredding経路をテストできる。
type Mock struct {
	mu   sync.Mutex
	keys map[string]domain.KeyMaterial
}

// NewMock は新しいMockを生成する。
func NewMock() *Mock {
	return &Mock{keys: map[string]domain.KeyMaterial{}}
}

// EnsureKey は鍵素材を取得する。存在しない場合は新規に生成して保存する。
func (m *Mock) EnsureKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := string(keyID)
	if key, ok := m.keys[id]; ok {
		return key, nil
	}

	var key domain.KeyMaterial
	if _, err := rand.Read(key[:]); err != nil {
		return domain.KeyMaterial{}, fmt.Errorf("generating random key: %w", err)
	}
	m.keys[id] = key
	return key, nil
}

// FetchKey は既存の鍵素材を取得する。存在しない場合は domain.ErrKeyNotFound。
func (m *Mock) FetchKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[string(keyID)]
	if !ok {
		return domain.KeyMaterial{}, domain.ErrKeyNotFound
	}
	return key, nil
}

// DeleteKey は鍵素材を破棄する（crypto shredding）。存在しない場合は
// domain.ErrKeyNotFound。
func (m *Mock) DeleteKey(ctx context.Context, keyID []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := string(keyID)
	if _, ok := m.keys[id]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(m.keys, id)
	return nil
}
