package domain

import "time"

// TransitKeyType はdevvaultが対応する鍵タイプ。
const TransitKeyType = "aes256-gcm96"

// TransitKey はdevvaultが保管するtransit鍵エンティティを表す。
type TransitKey struct {
	ID         string
	Mount      string
	Name       string
	Key        []byte
	Exportable bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
