// Package crypto はAES-256-GCMによる認証付き暗号化・復号と、
// レコード束縛用のAAD（additional authenticated data）の構築を提供する。
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"pii-vault-engine/internal/domain"
)

// aadScheme / aadType はAADの固定タグ。保存済みデータとの互換のため変更不可。
const (
	aadScheme = "col"
	aadType   = "piitext"
)

// AAD は鍵IDに束縛されたadditional authenticated dataを構築する。
// 封緘時と開封時で同一の値を与えなければ認証は成立しない。鍵IDが異なれば
// 必ず異なる値となるため、あるレコードの暗号文を別レコードの封筒へ
// 差し替えると認証に失敗する。
func AAD(keyID []byte) []byte {
	return []byte(aadScheme + ":" + aadType + ":id:" + hex.EncodeToString(keyID))
}

// Seal は平文をAES-256-GCMで暗号化し、SealedPayloadを返す。
// nonceは暗号論的乱数源から毎回新規に生成される。呼び出し側がnonceを
// 保存・再利用してはならない。
func Seal(plaintext []byte, key domain.KeyMaterial, keyID []byte) (domain.SealedPayload, error) {
	aead, err := newGCM(key)
	if err != nil {
		return domain.SealedPayload{}, err
	}

	iv := make([]byte, domain.IVSize)
	if _, err := rand.Read(iv); err != nil {
		return domain.SealedPayload{}, fmt.Errorf("generating random iv: %w", err)
	}

	// GCMは暗号文の末尾に認証タグを連結して返すため、ワイヤフォーマットに
	// 合わせてタグを分離する。
	sealed := aead.Seal(nil, iv, plaintext, AAD(keyID))
	tagPos := len(sealed) - domain.TagSize

	return domain.SealedPayload{
		Version:    domain.FormatVersion,
		KeyID:      keyID,
		IV:         iv,
		Tag:        sealed[tagPos:],
		Ciphertext: sealed[:tagPos],
	}, nil
}

// Open はSealedPayloadをAES-256-GCMで復号・検証し、平文を返す。
// タグ検証に失敗した場合は domain.ErrAuthenticationFailed を返す。
// 鍵違い・改ざん・AAD不一致のどれが原因かは呼び出し側から区別できない。
func Open(payload domain.SealedPayload, key domain.KeyMaterial) ([]byte, error) {
	if len(payload.IV) != domain.IVSize || len(payload.Tag) != domain.TagSize {
		return nil, fmt.Errorf("%w: invalid iv or tag length", domain.ErrMalformedEnvelope)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(payload.Ciphertext)+domain.TagSize)
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.Tag...)

	plaintext, err := aead.Open(nil, payload.IV, sealed, AAD(payload.KeyID))
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return plaintext, nil
}

func newGCM(key domain.KeyMaterial) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	return aead, nil
}
