// Package user はユーザープロフィールと退会のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

// プロフィール項目の上限文字数
const (
	maxNameLength        = 100
	maxDisplayNameLength = 100
	maxPhotoURLLength    = 2048
)

// whatsAppPattern はE.164形式（先頭の+は任意）の電話番号にマッチする。
var whatsAppPattern = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// Service はユーザー管理のサービス層。
// プロフィールの参照・マージ更新と退会処理を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// GetProfile は指定ユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// UpdateProfile はupdateで指定された項目だけをマージ更新する。
// 指定されていない項目は変更しない。更新項目がない場合は現在のプロフィールを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	normalized, err := normalizeProfileUpdate(update)
	if err != nil {
		return nil, err
	}
	if normalized.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	u, err := s.userRepo.MergeProfile(ctx, userID, normalized)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", userID),
	)
	return u, nil
}

// normalizeProfileUpdate は前後の空白を除去し、各項目を検証する。
func normalizeProfileUpdate(update model.ProfileUpdate) (model.ProfileUpdate, error) {
	out := model.ProfileUpdate{
		DisplayName:    trimPtr(update.DisplayName),
		PhotoURL:       trimPtr(update.PhotoURL),
		FirstName:      trimPtr(update.FirstName),
		LastName:       trimPtr(update.LastName),
		WhatsAppNumber: trimPtr(update.WhatsAppNumber),
	}

	if err := checkLength("display_name", out.DisplayName, maxDisplayNameLength); err != nil {
		return out, err
	}
	if err := checkLength("first_name", out.FirstName, maxNameLength); err != nil {
		return out, err
	}
	if err := checkLength("last_name", out.LastName, maxNameLength); err != nil {
		return out, err
	}
	if err := checkLength("photo_url", out.PhotoURL, maxPhotoURLLength); err != nil {
		return out, err
	}

	if out.PhotoURL != nil && *out.PhotoURL != "" {
		u, err := url.Parse(*out.PhotoURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return out, model.NewInvalidProfileError("photo_urlはhttpsの絶対URLで指定してください。")
		}
	}

	if out.WhatsAppNumber != nil && *out.WhatsAppNumber != "" {
		compact := strings.NewReplacer(" ", "", "-", "").Replace(*out.WhatsAppNumber)
		if !whatsAppPattern.MatchString(compact) {
			return out, model.NewInvalidProfileError("whatsapp_numberは国番号付きの電話番号で指定してください。")
		}
		out.WhatsAppNumber = &compact
	}

	return out, nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func checkLength(field string, value *string, max int) error {
	if value != nil && utf8.RuneCountInString(*value) > max {
		return model.NewInvalidProfileError(fmt.Sprintf("%sは%d文字以内で指定してください。", field, max))
	}
	return nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities）
// 受講登録は決済記録として残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
