// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pii-vault-engine/internal/domain"
)

// TransitKeyModel はgorm用のモデル定義。
// KEYはMySQLの予約語のため、カラム名はkey_materialとする。
type TransitKeyModel struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	Mount       string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_mount_name"`
	Name        string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_mount_name"`
	KeyMaterial []byte    `gorm:"type:blob;not null"`
	Exportable  bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (TransitKeyModel) TableName() string {
	return "transit_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *TransitKeyModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *TransitKeyModel) toDomain() *domain.TransitKey {
	return &domain.TransitKey{
		ID:         m.ID,
		Mount:      m.Mount,
		Name:       m.Name,
		Key:        m.KeyMaterial,
		Exportable: m.Exportable,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// TransitKeyRepository はtransit鍵のデータアクセスを提供する。
type TransitKeyRepository struct {
	db *gorm.DB
}

// NewTransitKeyRepository は新しいTransitKeyRepositoryを生成する。
func NewTransitKeyRepository(db *gorm.DB) *TransitKeyRepository {
	return &TransitKeyRepository{db: db}
}

// Create は新しいtransit鍵を保存する。(mount, name)が既に存在する場合は
// domain.ErrKeyAlreadyExists を返す。
func (r *TransitKeyRepository) Create(ctx context.Context, key *domain.TransitKey) error {
	model := &TransitKeyModel{
		ID:          key.ID,
		Mount:       key.Mount,
		Name:        key.Name,
		KeyMaterial: key.Key,
		Exportable:  key.Exportable,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrKeyAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create transit key",
			"operation", "create",
			"mount", key.Mount,
			"name", key.Name,
			"error", err,
		)
		return err
	}
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt
	key.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByMountAndName は指定されたマウント・鍵名のtransit鍵を取得する。
// 存在しない場合は (nil, nil) を返す。
func (r *TransitKeyRepository) FindByMountAndName(ctx context.Context, mount, name string) (*domain.TransitKey, error) {
	var model TransitKeyModel
	err := r.db.WithContext(ctx).
		Where("mount = ? AND name = ?", mount, name).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find transit key",
			"operation", "find_by_mount_and_name",
			"mount", mount,
			"name", name,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// DeleteByMountAndName は指定されたマウント・鍵名のtransit鍵を削除する。
// 削除された場合はtrueを返す。
func (r *TransitKeyRepository) DeleteByMountAndName(ctx context.Context, mount, name string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("mount = ? AND name = ?", mount, name).
		Delete(&TransitKeyModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete transit key",
			"operation", "delete_by_mount_and_name",
			"mount", mount,
			"name", name,
			"error", result.Error,
		)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
