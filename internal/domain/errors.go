package domain

import "errors"

var (
	// ErrMalformedEnvelope はワイヤフォーマットの構造検証に失敗した場合のエラー。
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrBackendUnavailable は鍵バックエンドへの到達・認証・応答解析に失敗した場合のエラー。
	// 一時的な障害であり、リトライ対象となる。
	ErrBackendUnavailable = errors.New("key backend unavailable")

	// ErrKeyNotFound はバックエンドが鍵素材の不存在（削除済みまたは未作成）を
	// 明示的に報告した場合のエラー。読み取り経路ではShreddedセンチネルに変換される。
	ErrKeyNotFound = errors.New("key not found")

	// ErrAuthenticationFailed はAEADの認証タグ検証に失敗した場合のエラー。
	// 鍵違い・改ざん・AAD不一致のいずれかだが、その区別は呼び出し側に開示しない。
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidKeyID は鍵IDが空など不正な場合のエラー。
	ErrInvalidKeyID = errors.New("invalid key id")

	// ErrKeyAlreadyExists は指定された名前の鍵が既に存在する場合のエラー。
	ErrKeyAlreadyExists = errors.New("key already exists")

	// ErrKeyNotExportable は鍵がexportable指定なしで作成されている場合のエラー。
	ErrKeyNotExportable = errors.New("key is not exportable")

	// ErrInvalidKeyName は鍵名の形式が不正な場合のエラー。
	ErrInvalidKeyName = errors.New("invalid key name")

	// ErrUnsupportedKeyType は対応していない鍵タイプが指定された場合のエラー。
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)
