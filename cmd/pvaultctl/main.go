// Package main はCLIツールのエントリポイント。
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pii-vault-engine/config"
	"pii-vault-engine/internal/cache"
	"pii-vault-engine/internal/codec"
	"pii-vault-engine/internal/domain"
	"pii-vault-engine/internal/infra"
	"pii-vault-engine/internal/usecase"
)

const version = "1.0.0"

var timeout time.Duration

// keyDeleter はバックエンド側での鍵削除（crypto shredding）を提供する。
// モック・Vaultクライアントの両方が実装する。
type keyDeleter interface {
	DeleteKey(ctx context.Context, keyID []byte) error
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pvaultctl",
		Short: "PII vault envelope engine CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .envファイルを読み込む（存在しない場合は無視）
			_ = godotenv.Load()
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Backend request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(sealCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(resealCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(describeCmd())
	rootCmd.AddCommand(rawCmd())
	rootCmd.AddCommand(shredCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newEngine は設定からバックエンド・キャッシュ・エンジンを組み立てる。
func newEngine() (*usecase.EnvelopeService, cache.Backend, error) {
	cfg := config.Load()
	b, err := infra.NewBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewEnvelopeService(cache.New(b, cfg.CacheTTL)), b, nil
}

func parseKeyID(s string) ([]byte, error) {
	keyID, err := hex.DecodeString(s)
	if err != nil || len(keyID) == 0 {
		return nil, fmt.Errorf("--key-id must be a non-empty hex string")
	}
	return keyID, nil
}

func readEnvelope(arg string) (domain.Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("envelope must be base64: %w", err)
	}
	env, err := codec.Decode(data)
	if err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

func printEnvelope(svc *usecase.EnvelopeService, env domain.Envelope) error {
	data, err := svc.RawBytes(env)
	if err != nil {
		return err
	}
	fmt.Println(base64.StdEncoding.EncodeToString(data))
	return nil
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pvaultctl version %s\n", version)
		},
	}
}

// sealCmd は平文の封緘コマンド。
func sealCmd() *cobra.Command {
	var keyIDHex string
	cmd := &cobra.Command{
		Use:   "seal <plaintext>",
		Short: "Seal plaintext under a key id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := parseKeyID(keyIDHex)
			if err != nil {
				return err
			}
			svc, _, err := newEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			env, err := svc.SealNew(ctx, []byte(args[0]), keyID)
			if err != nil {
				return fmt.Errorf("sealing failed: %w", err)
			}
			return printEnvelope(svc, env)
		},
	}
	cmd.Flags().StringVar(&keyIDHex, "key-id", "", "Key ID as hex (required)")
	cmd.MarkFlagRequired("key-id")
	return cmd
}

// openCmd は封筒の開封コマンド。鍵が削除済みの場合はセンチネル値を出力する。
func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <envelope-base64>",
		Short: "Open an envelope to plaintext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			svc, _, err := newEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			plaintext, err := svc.OpenToPlaintext(ctx, env)
			if err != nil {
				return fmt.Errorf("opening failed: %w", err)
			}
			fmt.Println(string(plaintext))
			return nil
		},
	}
}

// resealCmd は封筒の再封緘（鍵ローテーション）コマンド。
func resealCmd() *cobra.Command {
	var keyIDHex string
	cmd := &cobra.Command{
		Use:   "reseal <envelope-base64>",
		Short: "Re-seal an envelope under a new key id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := parseKeyID(keyIDHex)
			if err != nil {
				return err
			}
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			svc, _, err := newEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resealed, err := svc.SealExisting(ctx, env, keyID)
			if err != nil {
				return fmt.Errorf("re-sealing failed: %w", err)
			}
			return printEnvelope(svc, resealed)
		},
	}
	cmd.Flags().StringVar(&keyIDHex, "key-id", "", "New key ID as hex (required)")
	cmd.MarkFlagRequired("key-id")
	return cmd
}

// stageCmd は平文をStaging状態の封筒として包むコマンド。暗号操作は行わない。
func stageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <plaintext>",
		Short: "Wrap plaintext as a staging envelope (no encryption)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := usecase.NewEnvelopeService(nil)
			return printEnvelope(svc, svc.FromPlaintext([]byte(args[0])))
		},
	}
}

// describeCmd は封筒の構造を診断用に表示する。平文は表示しない。
func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <envelope-base64>",
		Short: "Describe envelope structure without decrypting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			svc := usecase.NewEnvelopeService(nil)
			fmt.Println(svc.DebugDescribe(env))
			return nil
		},
	}
}

// rawCmd は封筒のワイヤフォーマットをhexで表示する。
func rawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "raw <envelope-base64>",
		Short: "Print the wire-format bytes of an envelope as hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			svc := usecase.NewEnvelopeService(nil)
			data, err := svc.RawBytes(env)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
}

// shredCmd はバックエンドの鍵を削除し、該当key_idで封緘された全データを
// 復元不能にする（crypto shredding）。
func shredCmd() *cobra.Command {
	var keyIDHex string
	cmd := &cobra.Command{
		Use:   "shred",
		Short: "Delete key material at the backend (crypto shredding)",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := parseKeyID(keyIDHex)
			if err != nil {
				return err
			}
			_, b, err := newEngine()
			if err != nil {
				return err
			}
			deleter, ok := b.(keyDeleter)
			if !ok {
				return fmt.Errorf("backend does not support key deletion")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := deleter.DeleteKey(ctx, keyID); err != nil {
				return fmt.Errorf("shredding failed: %w", err)
			}
			fmt.Printf("Shredded key %s: envelopes sealed under it are now unrecoverable\n", keyIDHex)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyIDHex, "key-id", "", "Key ID as hex (required)")
	cmd.MarkFlagRequired("key-id")
	return cmd
}
