// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"

	"pii-vault-engine/internal/codec"
	"pii-vault-engine/internal/crypto"
	"pii-vault-engine/internal/domain"
)

// KeySource は鍵素材の取得を提供するインターフェース。
type KeySource interface {
	Ensure(ctx context.Context, keyID []byte) (domain.KeyMaterial, error)
	Fetch(ctx context.Context, keyID []byte) (domain.KeyMaterial, error)
}

// EnvelopeService は封筒の封緘・開封に関するビジネスロジックを提供する。
type EnvelopeService struct {
	keys KeySource
}

// NewEnvelopeService は新しいEnvelopeServiceを生成する。
func NewEnvelopeService(keys KeySource) *EnvelopeService {
	return &EnvelopeService{keys: keys}
}

// SealNew は平文を指定されたkey_idの鍵素材で封緘し、Sealed状態のEnvelopeを返す。
// 鍵素材が存在しない場合はバックエンドで作成される。
func (s *EnvelopeService) SealNew(ctx context.Context, plaintext, keyID []byte) (domain.Envelope, error) {
	if len(keyID) == 0 {
		return domain.Envelope{}, domain.ErrInvalidKeyID
	}

	key, err := s.keys.Ensure(ctx, keyID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("ensuring key material: %w", err)
	}

	payload, err := crypto.Seal(plaintext, key, keyID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("sealing: %w", err)
	}
	return domain.NewSealed(payload), nil
}

// SealExisting はEnvelope（StagingまたはSealed）を平文に開封してから、
// 指定されたkey_idで封緘し直す。鍵ローテーション・再暗号化に使う。
// 元の鍵が削除済みの場合はセンチネルではなく domain.ErrKeyNotFound を返す。
// 復元不能なデータをセンチネル文字列のまま暗号化してしまうのを防ぐため。
func (s *EnvelopeService) SealExisting(ctx context.Context, env domain.Envelope, keyID []byte) (domain.Envelope, error) {
	if !env.IsSealed() {
		return s.SealNew(ctx, env.Staging(), keyID)
	}

	payload := env.Sealed()
	key, err := s.keys.Fetch(ctx, payload.KeyID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("fetching key material for re-encryption: %w", err)
	}

	plaintext, err := crypto.Open(*payload, key)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("opening for re-encryption: %w", err)
	}
	return s.SealNew(ctx, plaintext, keyID)
}

// OpenToPlaintext はEnvelopeを平文に開封する。Staging状態ならそのまま返す。
// バックエンドが鍵の不存在を報告した場合はエラーではなくShreddedセンチネルを
// 返す。削除済み鍵のデータの読み取りはエラーではなく、段階的に劣化した値になる。
func (s *EnvelopeService) OpenToPlaintext(ctx context.Context, env domain.Envelope) ([]byte, error) {
	if !env.IsSealed() {
		return env.Staging(), nil
	}

	payload := env.Sealed()
	key, err := s.keys.Fetch(ctx, payload.KeyID)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.Shredded, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching key material: %w", err)
	}

	plaintext, err := crypto.Open(*payload, key)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// FromPlaintext は生のバイト列を暗号操作なしでStaging状態のEnvelopeとして包む。
func (s *EnvelopeService) FromPlaintext(plaintext []byte) domain.Envelope {
	return domain.NewStaging(plaintext)
}

// DebugDescribe はEnvelopeの状態と構造フィールドを診断用に文字列化する。
// 平文・鍵素材は含まない。
func (s *EnvelopeService) DebugDescribe(env domain.Envelope) string {
	if !env.IsSealed() {
		return fmt.Sprintf("Staging(%d bytes)", len(env.Staging()))
	}
	payload := env.Sealed()
	return fmt.Sprintf("Sealed{version: %d, key_id: %x, iv: %d bytes, tag: %d bytes, ciphertext: %d bytes}",
		payload.Version, payload.KeyID, len(payload.IV), len(payload.Tag), len(payload.Ciphertext))
}

// RawBytes はEnvelopeのワイヤフォーマット表現を返す。
func (s *EnvelopeService) RawBytes(env domain.Envelope) ([]byte, error) {
	return codec.Encode(env)
}
