// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーのプロフィールを表す。
// 任意項目は未設定を空文字で表す。
type User struct {
	ID             string
	Email          string
	DisplayName    string
	PhotoURL       string
	FirstName      string
	LastName       string
	WhatsAppNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileUpdate はプロフィールのマージ更新内容を表す。
// nilのフィールドは更新しない。
type ProfileUpdate struct {
	DisplayName    *string
	PhotoURL       *string
	FirstName      *string
	LastName       *string
	WhatsAppNumber *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.PhotoURL == nil && p.FirstName == nil &&
		p.LastName == nil && p.WhatsAppNumber == nil
}

// Identity は認証手段との紐付け情報を表す。
// Providerが"password"の場合はPasswordHashにbcryptハッシュを保持する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	PasswordHash   string
	CreatedAt      time.Time
}

// 認証プロバイダ名
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
