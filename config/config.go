// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// MockAddrPrefix はモックバックエンドを選択するアドレスのプレフィックス。
const MockAddrPrefix = "mock://"

// DefaultCacheTTL は鍵キャッシュのデフォルトTTL。
const DefaultCacheTTL = 300 * time.Second

// Config はアプリケーション設定を表す。
type Config struct {
	VaultAddr        string
	VaultToken       string
	VaultMount       string
	CacheTTL         time.Duration
	Port             string
	DatabaseURL      string
	LogLevel         string
	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		VaultAddr:        os.Getenv("VAULT_ADDR"),
		VaultToken:       os.Getenv("VAULT_TOKEN"),
		VaultMount:       getEnv("VAULT_MOUNT", "transit"),
		CacheTTL:         getEnvSeconds("CACHE_TTL_SEC", DefaultCacheTTL),
		Port:             getEnv("PORT", "8200"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "pii-vault-engine"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 || f > 1 {
		return defaultVal
	}
	return f
}
