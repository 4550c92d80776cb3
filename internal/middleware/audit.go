package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は鍵操作の監査ログを出力する。
func WriteAuditLog(ctx context.Context, operation, mount, name, result string) {
	slog.InfoContext(ctx, "key operation completed",
		"operation", operation,
		"mount", mount,
		"name", name,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
