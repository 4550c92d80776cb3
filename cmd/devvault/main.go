// Package main は開発用transitサーバー（devvault）のエントリポイント。
//
// devvaultは本番でVaultが担うtransit APIのサブセット（鍵作成・エクスポート・
// 削除）を単一バイナリで提供し、Vaultなしでの結合テスト・ローカル開発を
// 可能にする。本番の代替ではない。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pii-vault-engine/config"
	"pii-vault-engine/internal/handler"
	"pii-vault-engine/internal/infra"
	"pii-vault-engine/internal/repository"
	"pii-vault-engine/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, infra.LogLevel(cfg))

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	if err := infra.BootstrapSchema(db); err != nil {
		slog.Error("failed to bootstrap schema", "error", err)
		os.Exit(1)
	}

	// トークン必須
	if cfg.VaultToken == "" {
		slog.Error("VAULT_TOKEN is not set")
		os.Exit(1)
	}

	// DI
	repo := repository.NewTransitKeyRepository(db)
	service := usecase.NewTransitService(repo)
	h := handler.NewTransitHandler(service)
	router := handler.NewRouter(h, cfg.VaultToken)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting devvault", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
