package infra

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// transitKeysSchema はdevvaultの鍵テーブル定義。MySQLとSQLiteの両方で動く
// DDLに限定し、マイグレーションツールなしで起動時に適用する。
const transitKeysSchema = `
CREATE TABLE IF NOT EXISTS transit_keys (
	id VARCHAR(36) PRIMARY KEY,
	mount VARCHAR(64) NOT NULL,
	name VARCHAR(128) NOT NULL,
	key_material BLOB NOT NULL,
	exportable BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	CONSTRAINT uk_mount_name UNIQUE (mount, name)
)`

// NewDB はgormによるデータベース接続を初期化する。
// DSNが"mysql://"で始まる場合はMySQL、それ以外はSQLiteのファイルパスとして扱う。
func NewDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if rest, ok := strings.CutPrefix(dsn, "mysql://"); ok {
		dialector = mysql.Open(rest)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// BootstrapSchema はdevvaultのスキーマを適用する。
func BootstrapSchema(db *gorm.DB) error {
	return db.Exec(transitKeysSchema).Error
}
