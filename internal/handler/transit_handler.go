// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"pii-vault-engine/internal/domain"
	"pii-vault-engine/internal/middleware"
	"pii-vault-engine/internal/usecase"
	"pii-vault-engine/pkg/httputil"
)

var keyNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// TransitHandler はtransit鍵APIのHTTPハンドラを提供する。
type TransitHandler struct {
	service *usecase.TransitService
}

// NewTransitHandler は新しいTransitHandlerを生成する。
func NewTransitHandler(service *usecase.TransitService) *TransitHandler {
	return &TransitHandler{service: service}
}

func validateKeyName(name string) error {
	if name == "" || len(name) > 128 {
		return domain.ErrInvalidKeyName
	}
	if !keyNameRegex.MatchString(name) {
		return domain.ErrInvalidKeyName
	}
	return nil
}

// CreateKeyRequest は鍵作成リクエストの形式。
type CreateKeyRequest struct {
	Type       string `json:"type"`
	Exportable bool   `json:"exportable"`
}

// KeyConfigRequest は鍵設定更新リクエストの形式。
type KeyConfigRequest struct {
	DeletionAllowed bool `json:"deletion_allowed"`
}

// ExportResponse は鍵エクスポートのレスポンス形式。
// Vault transitと同様にバージョン番号をキーとするマップで素材を返す。
type ExportResponse struct {
	Data ExportData `json:"data"`
}

// ExportData はエクスポートされた鍵素材を表す。
type ExportData struct {
	Keys map[string]string `json:"keys"`
}

// CreateKey は鍵を作成する。既存の鍵名に対しても成功する（冪等）。
func (h *TransitHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")
	name := chi.URLParam(r, "name")
	if err := validateKeyName(name); err != nil {
		httputil.Errors(w, http.StatusBadRequest, "invalid key name")
		return
	}

	req := CreateKeyRequest{Type: domain.TransitKeyType}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Errors(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Type != domain.TransitKeyType {
		httputil.Errors(w, http.StatusBadRequest, "unsupported key type: "+req.Type)
		return
	}

	if err := h.service.CreateKey(r.Context(), mount, name, req.Exportable); err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_KEY", mount, name, "FAILED")
		httputil.Errors(w, http.StatusInternalServerError, "internal error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_KEY", mount, name, "SUCCESS")
	w.WriteHeader(http.StatusNoContent)
}

// UpdateKeyConfig は鍵設定を更新する。devvaultではdeletion_allowedの受理のみ行う。
func (h *TransitHandler) UpdateKeyConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := validateKeyName(name); err != nil {
		httputil.Errors(w, http.StatusBadRequest, "invalid key name")
		return
	}

	var req KeyConfigRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Errors(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportKey は生鍵素材をエクスポートする。
func (h *TransitHandler) ExportKey(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")
	name := chi.URLParam(r, "name")
	if err := validateKeyName(name); err != nil {
		httputil.Errors(w, http.StatusBadRequest, "invalid key name")
		return
	}

	material, err := h.service.ExportKey(r.Context(), mount, name)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			middleware.WriteAuditLog(r.Context(), "EXPORT_KEY", mount, name, "FAILED")
			httputil.Errors(w, http.StatusNotFound, "key not found")
			return
		}
		if errors.Is(err, domain.ErrKeyNotExportable) {
			middleware.WriteAuditLog(r.Context(), "EXPORT_KEY", mount, name, "FAILED")
			httputil.Errors(w, http.StatusBadRequest, "key is not exportable")
			return
		}
		middleware.WriteAuditLog(r.Context(), "EXPORT_KEY", mount, name, "FAILED")
		httputil.Errors(w, http.StatusInternalServerError, "internal error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "EXPORT_KEY", mount, name, "SUCCESS")
	httputil.JSON(w, http.StatusOK, ExportResponse{
		Data: ExportData{
			Keys: map[string]string{
				"1": base64.StdEncoding.EncodeToString(material),
			},
		},
	})
}

// DeleteKey は鍵を削除する（crypto shredding）。
func (h *TransitHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")
	name := chi.URLParam(r, "name")
	if err := validateKeyName(name); err != nil {
		httputil.Errors(w, http.StatusBadRequest, "invalid key name")
		return
	}

	if err := h.service.DeleteKey(r.Context(), mount, name); err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			middleware.WriteAuditLog(r.Context(), "DELETE_KEY", mount, name, "FAILED")
			httputil.Errors(w, http.StatusNotFound, "key not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "DELETE_KEY", mount, name, "FAILED")
		httputil.Errors(w, http.StatusInternalServerError, "internal error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_KEY", mount, name, "SUCCESS")
	w.WriteHeader(http.StatusNoContent)
}
