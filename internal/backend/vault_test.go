package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pii-vault-engine/internal/domain"
	"pii-vault-engine/internal/handler"
	"pii-vault-engine/internal/usecase"
)

const testToken = "test-token"

// memoryRepo は鍵バックエンドのHTTPスタックを起動するためのインメモリリポジトリ。
type memoryRepo struct {
	mu   sync.Mutex
	keys map[string]*domain.TransitKey
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{keys: map[string]*domain.TransitKey{}}
}

func repoKey(mount, name string) string {
	return mount + "/" + name
}

func (r *memoryRepo) Create(ctx context.Context, key *domain.TransitKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := repoKey(key.Mount, key.Name)
	if _, ok := r.keys[id]; ok {
		return domain.ErrKeyAlreadyExists
	}
	copied := *key
	r.keys[id] = &copied
	return nil
}

func (r *memoryRepo) FindByMountAndName(ctx context.Context, mount, name string) (*domain.TransitKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[repoKey(mount, name)]
	if !ok {
		return nil, nil
	}
	copied := *key
	return &copied, nil
}

func (r *memoryRepo) DeleteByMountAndName(ctx context.Context, mount, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := repoKey(mount, name)
	if _, ok := r.keys[id]; !ok {
		return false, nil
	}
	delete(r.keys, id)
	return true, nil
}

// startServer はdevvaultのHTTPスタック一式をhttptestで起動する。
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := usecase.NewTransitService(newMemoryRepo())
	h := handler.NewTransitHandler(service)
	srv := httptest.NewServer(handler.NewRouter(h, testToken))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultClient_EnsureKey(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)
	c := NewVaultClient(srv.URL, testToken, "transit")

	keyID := []byte{0x00, 0x00, 0x00, 0x01}
	created, err := c.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	var zero domain.KeyMaterial
	if created == zero {
		t.Error("material must not be all zero")
	}

	// 2回目のEnsureKeyおよびFetchKeyは同じ素材を返す
	again, err := c.EnsureKey(ctx, keyID)
	if err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if again != created {
		t.Error("EnsureKey must be idempotent")
	}
	fetched, err := c.FetchKey(ctx, keyID)
	if err != nil {
		t.Fatalf("FetchKey failed: %v", err)
	}
	if fetched != created {
		t.Error("FetchKey must return the created material")
	}
}

func TestVaultClient_FetchKeyMissing(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)
	c := NewVaultClient(srv.URL, testToken, "transit")

	_, err := c.FetchKey(ctx, []byte{0xde, 0xad})
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound, got %v", err)
	}
}

func TestVaultClient_DeleteKey(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)
	c := NewVaultClient(srv.URL, testToken, "transit")

	keyID := []byte{0x00, 0x00, 0x00, 0x02}
	if err := c.DeleteKey(ctx, keyID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound deleting absent key, got %v", err)
	}

	if _, err := c.EnsureKey(ctx, keyID); err != nil {
		t.Fatalf("EnsureKey failed: %v", err)
	}
	if err := c.DeleteKey(ctx, keyID); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	if _, err := c.FetchKey(ctx, keyID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound after delete, got %v", err)
	}
}

func TestVaultClient_WrongToken(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)
	c := NewVaultClient(srv.URL, "wrong-token", "transit")

	_, err := c.FetchKey(ctx, []byte{0x01})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("want ErrBackendUnavailable, got %v", err)
	}
}

func TestVaultClient_RetriesOnServerError(t *testing.T) {
	ctx := context.Background()

	material := make([]byte, domain.KeySize)
	for i := range material {
		material[i] = byte(i)
	}
	body, err := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"keys": map[string]string{
				"1": base64.StdEncoding.EncodeToString(material),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// 2回の500の後に成功する
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	c := NewVaultClient(srv.URL, testToken, "transit")
	key, err := c.FetchKey(ctx, []byte{0x01})
	if err != nil {
		t.Fatalf("FetchKey failed: %v", err)
	}
	if key[5] != 5 {
		t.Error("unexpected key material")
	}
	if calls != 3 {
		t.Errorf("want 3 calls (2 retries), got %d", calls)
	}
}

func TestVaultClient_NoRetryOnNotFound(t *testing.T) {
	ctx := context.Background()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":["key not found"]}`)
	}))
	defer srv.Close()

	c := NewVaultClient(srv.URL, testToken, "transit")
	_, err := c.FetchKey(ctx, []byte{0x01})
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("missing key must not be retried, got %d calls", calls)
	}
}
