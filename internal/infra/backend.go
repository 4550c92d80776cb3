package infra

import (
	"fmt"
	"strings"

	"pii-vault-engine/config"
	"pii-vault-engine/internal/backend"
	"pii-vault-engine/internal/cache"
)

// NewBackend は設定に応じた鍵バックエンドを生成する。
// VAULT_ADDRが"mock://"で始まる場合はプロセス内モックを返す。
func NewBackend(cfg *config.Config) (cache.Backend, error) {
	switch {
	case cfg.VaultAddr == "":
		return nil, fmt.Errorf("VAULT_ADDR is not set")
	case strings.HasPrefix(cfg.VaultAddr, config.MockAddrPrefix):
		return backend.NewMock(), nil
	default:
		return backend.NewVaultClient(cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount), nil
	}
}
