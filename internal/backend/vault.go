package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pii-vault-engine/internal/domain"
)

const (
	requestTimeout = 15 * time.Second

	// maxRetries は一時的なバックエンド障害に対する再試行回数（初回を除く）。
	// EnsureKey / FetchKey は冪等なので再試行して安全。
	maxRetries = 2
)

// VaultClient はVault transit互換APIから鍵素材を取得するクライアント。
// 鍵名はhex(key_id)。鍵が存在しない場合はexportableなaes256-gcm96鍵を
// 作成してから取得する。ネットワーク・認証・応答解析の失敗は
// domain.ErrBackendUnavailable に、削除済み・未作成の鍵は
// domain.ErrKeyNotFound にマップされる。
type VaultClient struct {
	addr   string
	token  string
	mount  string
	client *http.Client
}

// NewVaultClient は新しいVaultClientを生成する。
func NewVaultClient(addr, token, mount string) *VaultClient {
	return &VaultClient{
		addr:  strings.TrimRight(addr, "/"),
		token: token,
		mount: mount,
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type exportResponse struct {
	Data struct {
		Keys map[string]string `json:"keys"`
	} `json:"data"`
}

// FetchKey は既存の鍵素材を取得する。存在しない場合は domain.ErrKeyNotFound。
func (c *VaultClient) FetchKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	name := hex.EncodeToString(keyID)

	var key domain.KeyMaterial
	op := func() error {
		k, err := c.export(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrKeyNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		key = k
		return nil
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		slog.ErrorContext(ctx, "failed to fetch key from vault",
			"operation", "fetch_key",
			"key_name", name,
			"error", err,
		)
		return domain.KeyMaterial{}, err
	}
	return key, nil
}

// EnsureKey は鍵素材を取得する。存在しない場合は作成してから取得する。
// 作成は冪等であり、複数プロセスからの同時呼び出しに対して安全。
func (c *VaultClient) EnsureKey(ctx context.Context, keyID []byte) (domain.KeyMaterial, error) {
	key, err := c.FetchKey(ctx, keyID)
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return key, err
	}

	name := hex.EncodeToString(keyID)
	if err := c.createKey(ctx, name); err != nil {
		slog.ErrorContext(ctx, "failed to create key in vault",
			"operation", "ensure_key",
			"key_name", name,
			"error", err,
		)
		return domain.KeyMaterial{}, err
	}
	return c.FetchKey(ctx, keyID)
}

// DeleteKey は鍵をバックエンドから削除する（crypto shredding）。
// transitの仕様に合わせ、削除許可の設定を行ってから削除する。
func (c *VaultClient) DeleteKey(ctx context.Context, keyID []byte) error {
	name := hex.EncodeToString(keyID)

	config, err := json.Marshal(map[string]bool{"deletion_allowed": true})
	if err != nil {
		return fmt.Errorf("marshaling key config: %w", err)
	}
	status, _, err := c.do(ctx, http.MethodPost, c.keyURL(name)+"/config", config)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrKeyNotFound
	}
	if status >= 300 {
		return backendErrf("vault key config returned status %d", status)
	}

	status, _, err = c.do(ctx, http.MethodDelete, c.keyURL(name), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrKeyNotFound
	}
	if status >= 300 {
		return backendErrf("vault key delete returned status %d", status)
	}
	return nil
}

// export は transit の鍵エクスポートAPIを1回呼び出す。
func (c *VaultClient) export(ctx context.Context, name string) (domain.KeyMaterial, error) {
	url := fmt.Sprintf("%s/v1/%s/export/encryption-key/%s", c.addr, c.mount, name)
	status, body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.KeyMaterial{}, err
	}
	if status == http.StatusNotFound {
		return domain.KeyMaterial{}, domain.ErrKeyNotFound
	}
	if status >= 300 {
		return domain.KeyMaterial{}, backendErrf("vault export returned status %d", status)
	}

	var resp exportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.KeyMaterial{}, backendErrf("parsing vault export response: %v", err)
	}

	// transitのexportはバージョン番号をキーとするマップで鍵を返す。
	// 最新バージョンの素材を使う。
	latest := ""
	latestVersion := -1
	for version, material := range resp.Data.Keys {
		n, err := strconv.Atoi(version)
		if err != nil {
			continue
		}
		if n > latestVersion {
			latestVersion = n
			latest = material
		}
	}
	if latestVersion < 0 {
		return domain.KeyMaterial{}, backendErrf("no key material in vault export response")
	}

	raw, err := base64.StdEncoding.DecodeString(latest)
	if err != nil {
		return domain.KeyMaterial{}, backendErrf("decoding key material: %v", err)
	}
	if len(raw) != domain.KeySize {
		return domain.KeyMaterial{}, backendErrf("invalid key length %d", len(raw))
	}

	var key domain.KeyMaterial
	copy(key[:], raw)
	return key, nil
}

// createKey は transit の鍵作成APIを呼び出す。既存の鍵名に対しても成功する（冪等）。
func (c *VaultClient) createKey(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":       domain.TransitKeyType,
		"exportable": true,
	})
	if err != nil {
		return fmt.Errorf("marshaling key creation request: %w", err)
	}

	op := func() error {
		status, _, err := c.do(ctx, http.MethodPost, c.keyURL(name), payload)
		if err != nil {
			return err
		}
		if status >= 300 {
			return backendErrf("vault key creation returned status %d", status)
		}
		return nil
	}
	return backoff.Retry(op, c.newBackOff(ctx))
}

func (c *VaultClient) keyURL(name string) string {
	return fmt.Sprintf("%s/v1/%s/keys/%s", c.addr, c.mount, name)
}

func (c *VaultClient) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// タイムアウトを含む転送エラーはすべてBackendError。
		// KeyNotFoundは404を明示的に受け取った場合に限る。
		return 0, nil, backendErrf("vault request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, backendErrf("reading vault response: %v", err)
	}
	return resp.StatusCode, data, nil
}

func (c *VaultClient) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

func backendErrf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, fmt.Sprintf(format, args...))
}
