// Package codec はEnvelopeのワイヤフォーマット（CBOR）の符号化・復号を提供する。
//
// ワイヤフォーマットは短いフィールドキーを持つ自己記述的なCBORマップで、
// 識別子 d がStaging（"s"）とSealed（"e"）を区別する。復号は純粋な構造検証であり、
// 鍵バックエンドへのアクセスは一切行わない。符号化は決定的（Core Deterministic
// Encoding）で、encode → decode → encode は同一のバイト列を生成する。
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"pii-vault-engine/internal/domain"
)

const (
	kindStaging = "s"
	kindSealed  = "e"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// wireKind は識別子の読み出しのみを行う。未知のフィールドは無視される。
type wireKind struct {
	Kind string `cbor:"d"`
}

type wireStaging struct {
	Kind      string `cbor:"d"`
	Plaintext []byte `cbor:"p"`
}

type wireSealed struct {
	Kind       string `cbor:"d"`
	Version    uint8  `cbor:"v"`
	KeyID      []byte `cbor:"k"`
	IV         []byte `cbor:"i"`
	Tag        []byte `cbor:"t"`
	Ciphertext []byte `cbor:"c"`
}

// Encode はEnvelopeをワイヤフォーマットに符号化する。
func Encode(env domain.Envelope) ([]byte, error) {
	if !env.IsSealed() {
		plaintext := env.Staging()
		if plaintext == nil {
			plaintext = []byte{}
		}
		data, err := encMode.Marshal(wireStaging{Kind: kindStaging, Plaintext: plaintext})
		if err != nil {
			return nil, fmt.Errorf("encoding staging envelope: %w", err)
		}
		return data, nil
	}

	payload := env.Sealed()
	ciphertext := payload.Ciphertext
	if ciphertext == nil {
		ciphertext = []byte{}
	}
	data, err := encMode.Marshal(wireSealed{
		Kind:       kindSealed,
		Version:    payload.Version,
		KeyID:      payload.KeyID,
		IV:         payload.IV,
		Tag:        payload.Tag,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding sealed envelope: %w", err)
	}
	return data, nil
}

// Decode はワイヤフォーマットからEnvelopeを復元する。
// 識別子が未知、必須フィールドの欠落、IV/タグ長の不一致、未対応バージョンの
// いずれの場合も domain.ErrMalformedEnvelope を返す。
func Decode(data []byte) (domain.Envelope, error) {
	var kind wireKind
	if err := decMode.Unmarshal(data, &kind); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: not a CBOR map", domain.ErrMalformedEnvelope)
	}

	switch kind.Kind {
	case kindStaging:
		var wire wireStaging
		if err := decMode.Unmarshal(data, &wire); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: invalid staging fields", domain.ErrMalformedEnvelope)
		}
		if wire.Plaintext == nil {
			return domain.Envelope{}, fmt.Errorf("%w: staging payload missing", domain.ErrMalformedEnvelope)
		}
		return domain.NewStaging(wire.Plaintext), nil

	case kindSealed:
		var wire wireSealed
		if err := decMode.Unmarshal(data, &wire); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: invalid sealed fields", domain.ErrMalformedEnvelope)
		}
		if wire.Version != domain.FormatVersion {
			return domain.Envelope{}, fmt.Errorf("%w: unsupported version %d", domain.ErrMalformedEnvelope, wire.Version)
		}
		if len(wire.KeyID) == 0 {
			return domain.Envelope{}, fmt.Errorf("%w: key id missing", domain.ErrMalformedEnvelope)
		}
		if len(wire.IV) != domain.IVSize {
			return domain.Envelope{}, fmt.Errorf("%w: iv must be %d bytes, got %d", domain.ErrMalformedEnvelope, domain.IVSize, len(wire.IV))
		}
		if len(wire.Tag) != domain.TagSize {
			return domain.Envelope{}, fmt.Errorf("%w: tag must be %d bytes, got %d", domain.ErrMalformedEnvelope, domain.TagSize, len(wire.Tag))
		}
		if wire.Ciphertext == nil {
			return domain.Envelope{}, fmt.Errorf("%w: ciphertext missing", domain.ErrMalformedEnvelope)
		}
		return domain.NewSealed(domain.SealedPayload{
			Version:    wire.Version,
			KeyID:      wire.KeyID,
			IV:         wire.IV,
			Tag:        wire.Tag,
			Ciphertext: wire.Ciphertext,
		}), nil

	default:
		return domain.Envelope{}, fmt.Errorf("%w: unknown discriminator %q", domain.ErrMalformedEnvelope, kind.Kind)
	}
}
