// Package cache はプロセス全体で共有される鍵素材のTTLキャッシュを提供する。
//
// エントリはアクセス時に遅延評価でTTL判定され、期限切れは次のアクセスでの
// 再取得によって置き換えられる（バックグラウンドの掃除は行わない）。
// key_id → エントリのマップはサイズ制限を持たない（ポリシーとして非有界）。
// 同一key_idへの同時ミスはsingle-flightで1回のバックエンド呼び出しに集約され、
// 異なるkey_id同士は互いにブロックしない。
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pii-vault-engine/internal/domain"
)

// Backend は鍵バックエンドへのアクセスを提供するインターフェース。
type Backend interface {
	// EnsureKey は鍵素材を（存在しなければ作成して）取得する。封緘経路で使う。
	EnsureKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error)
	// FetchKey は既存の鍵素材を取得する。存在しない場合は domain.ErrKeyNotFound。
	// 開封経路で使う。開封経路がEnsureKeyを使うと削除済みの鍵が再作成され、
	// crypto shreddingの検出が認証エラーに化けてしまう。
	FetchKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error)
}

type entry struct {
	key       domain.KeyMaterial
	expiresAt time.Time
}

// KeyCache はkey_idごとの鍵素材をTTL付きでキャッシュする。
type KeyCache struct {
	backend Backend
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]entry

	flight singleflight.Group

	// now はテストでの時刻差し替え用。
	now func() time.Time
}

// New は新しいKeyCacheを生成する。
func New(backend Backend, ttl time.Duration) *KeyCache {
	return &KeyCache{
		backend: backend,
		ttl:     ttl,
		entries: map[string]entry{},
		now:     time.Now,
	}
}

// Ensure は封緘経路用に鍵素材を取得する。キャッシュミス時はバックエンドの
// EnsureKey（create-if-absent）を呼ぶ。
func (c *KeyCache) Ensure(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	return c.load(ctx, keyID, "ensure", c.backend.EnsureKey)
}

// Fetch は開封経路用に鍵素材を取得する。キャッシュミス時はバックエンドの
// FetchKeyを呼び、鍵が存在しない場合は domain.ErrKeyNotFound を返す。
// 不存在の結果はキャッシュしない。
func (c *KeyCache) Fetch(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	return c.load(ctx, keyID, "fetch", c.backend.FetchKey)
}

// Invalidate は指定されたkey_idのエントリを破棄する。外部での鍵ローテーション
// 直後などの明示的なキャッシュ破棄のための拡張点。
func (c *KeyCache) Invalidate(keyID []byte) {
	c.mu.Lock()
	delete(c.entries, string(keyID))
	c.mu.Unlock()
}

func (c *KeyCache) load(ctx context.Context, keyID []byte, op string, fetch func(context.Context, []byte) (domain.KeyMaterial, error)) (domain.KeyMaterial, error) {
	id := string(keyID)
	if key, ok := c.cached(id); ok {
		return key, nil
	}

	// flight keyに操作種別を含め、開封経路の待機者が封緘経路のcreateに
	// 相乗りしないようにする。
	v, err, _ := c.flight.Do(op+":"+id, func() (interface{}, error) {
		// flight獲得までの間に他の呼び出しが格納済みの場合がある。
		if key, ok := c.cached(id); ok {
			return key, nil
		}
		key, err := fetch(ctx, keyID)
		if err != nil {
			return domain.KeyMaterial{}, err
		}
		c.store(id, key)
		return key, nil
	})
	if err != nil {
		return domain.KeyMaterial{}, err
	}
	return v.(domain.KeyMaterial), nil
}

func (c *KeyCache) cached(id string) (domain.KeyMaterial, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || !c.now().Before(e.expiresAt) {
		return domain.KeyMaterial{}, false
	}
	return e.key, true
}

func (c *KeyCache) store(id string, key domain.KeyMaterial) {
	c.mu.Lock()
	c.entries[id] = entry{key: key, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
