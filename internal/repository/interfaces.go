// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// MergeProfile はupdateで指定されたフィールドのみを更新し、更新後のユーザーを返す。
	// ユーザーが存在しない場合はnilを返す。
	MergeProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は認証手段の紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを追加する。
	Create(ctx context.Context, identity *model.Identity) error

	// UpdatePasswordHash はpasswordプロバイダのidentityのハッシュを置き換える。
	// 対象が存在しない場合はエラーを返す。
	UpdatePasswordHash(ctx context.Context, identityID, passwordHash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CourseRepository はコースカタログの参照インターフェース。
type CourseRepository interface {
	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// List はコース一覧をタイトル順で返す。categoryが空の場合は全件を返す。
	List(ctx context.Context, category string) ([]model.Course, error)

	// ListByIDs は指定IDのうち存在するコースのみを返す。順序はidsに従う。
	ListByIDs(ctx context.Context, ids []string) ([]model.Course, error)
}

// LessonRepository はレッスンの参照インターフェース。
type LessonRepository interface {
	// ListByCourseID は指定コースのレッスンをorderの昇順で返す。
	ListByCourseID(ctx context.Context, courseID string) ([]model.Lesson, error)
}

// EnrollmentRepository は受講登録の永続化インターフェース。
type EnrollmentRepository interface {
	// Upsert はenrollment.IDをキーに受講登録を丸ごと書き込む。
	// 既存レコードは上書きされ、enrolled_atはDBの現在時刻になる。
	// 書き込み後のレコードを返す。
	Upsert(ctx context.Context, enrollment *model.Enrollment) (*model.Enrollment, error)

	// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)

	// ListByUserID は指定ユーザーの受講登録を登録日時の新しい順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Enrollment, error)
}

// BlogPostRepository はブログ記事の永続化インターフェース。
type BlogPostRepository interface {
	// Upsert はpost.IDをキーに記事を作成または更新する。
	// is_featuredは既存値を保持する。
	Upsert(ctx context.Context, post *model.BlogPost) error

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.BlogPost, error)

	// List は記事を公開日時の新しい順で最大limit件返す。
	List(ctx context.Context, limit int) ([]model.BlogPost, error)
}
