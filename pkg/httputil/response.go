// Package httputil はHTTPレスポンス生成のユーティリティを提供する。
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse はVault互換のエラーレスポンスの形式。
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

// JSON はJSONレスポンスを返す。
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// ヘッダーは既に送信済みのため、エラーレスポンスには変更できない
			http.Error(w, "", http.StatusInternalServerError)
		}
	}
}

// Errors はVault互換のエラーレスポンスを返す。
func Errors(w http.ResponseWriter, status int, messages ...string) {
	JSON(w, status, ErrorResponse{Errors: messages})
}
