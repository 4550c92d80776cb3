// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"crypto/subtle"
	"net/http"

	"pii-vault-engine/pkg/httputil"
)

// RequireToken はX-Vault-Tokenヘッダーによるトークン認証を行うミドルウェアを返す。
// 不一致時はVault互換の403を返す。
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Vault-Token")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.Errors(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
