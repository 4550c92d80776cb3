// Package domain はドメインモデルとビジネスルールを定義する。
package domain

// KeySize はAES-256の鍵長（バイト）。
const KeySize = 32

// IVSize はAES-GCMのnonce長（バイト）。
const IVSize = 12

// TagSize はAES-GCMの認証タグ長（バイト）。
const TagSize = 16

// FormatVersion は現在のSealedペイロードのフォーマットバージョン。
const FormatVersion = 1

// KeyMaterial はAES-256の生鍵素材を表す。長さは型で保証される。
type KeyMaterial [KeySize]byte

// Shredded は鍵が削除済み（crypto shredding）の場合に
// 平文の代わりに返されるセンチネル値。
var Shredded = []byte("****")

// SealedPayload は暗号化済みの値の構造を表す。
type SealedPayload struct {
	Version    uint8
	KeyID      []byte
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// Envelope は値の2状態を表すタグ付き共用体。
// Staging（暗号化前の平文）とSealed（暗号化済み）のいずれか一方の状態のみを取る。
type Envelope struct {
	sealed  bool
	staging []byte
	payload SealedPayload
}

// NewStaging は平文をStaging状態のEnvelopeとして包む。
func NewStaging(plaintext []byte) Envelope {
	return Envelope{staging: plaintext}
}

// NewSealed は暗号化済みペイロードをSealed状態のEnvelopeとして包む。
func NewSealed(payload SealedPayload) Envelope {
	return Envelope{sealed: true, payload: payload}
}

// IsSealed はSealed状態かどうかを返す。
func (e Envelope) IsSealed() bool {
	return e.sealed
}

// Staging はStaging状態の平文を返す。Sealed状態の場合はnil。
func (e Envelope) Staging() []byte {
	if e.sealed {
		return nil
	}
	return e.staging
}

// Sealed はSealed状態のペイロードを返す。Staging状態の場合はnil。
func (e Envelope) Sealed() *SealedPayload {
	if !e.sealed {
		return nil
	}
	return &e.payload
}
