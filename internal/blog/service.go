// Package blog はブログ記事の参照と抜粋生成を提供する。
package blog

import (
	"context"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

// 一覧の取得件数
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Service はブログ記事参照のサービス層。
type Service struct {
	postRepo repository.BlogPostRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(postRepo repository.BlogPostRepository) *Service {
	return &Service{postRepo: postRepo}
}

// ListPosts は記事を公開日時の新しい順で返す。
// limitが0以下の場合はDefaultListLimit、MaxListLimitを超える場合はMaxListLimitに丸める。
func (s *Service) ListPosts(ctx context.Context, limit int) ([]model.BlogPost, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	posts, err := s.postRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if posts == nil {
		posts = []model.BlogPost{}
	}
	return posts, nil
}

// GetPost は指定IDの記事を返す。存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) GetPost(ctx context.Context, postID string) (*model.BlogPost, error) {
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
}
