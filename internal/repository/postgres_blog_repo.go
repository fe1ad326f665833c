package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

const blogPostColumns = `id, title, category, image_url, link, excerpt, content, is_featured, published_at, updated_at`

// PostgresBlogPostRepo はPostgreSQLを使用したブログ記事リポジトリ。
type PostgresBlogPostRepo struct {
	db *sql.DB
}

// NewPostgresBlogPostRepo はPostgresBlogPostRepoを生成する。
func NewPostgresBlogPostRepo(db *sql.DB) *PostgresBlogPostRepo {
	return &PostgresBlogPostRepo{db: db}
}

func scanBlogPost(row rowScanner) (*model.BlogPost, error) {
	p := &model.BlogPost{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Category, &p.ImageURL, &p.Link, &p.Excerpt,
		&p.Content, &p.IsFeatured, &p.PublishedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert はpost.IDをキーに記事を作成または更新する。
// is_featuredは編集部が手動で設定するため、既存レコードの値を保持する。
func (r *PostgresBlogPostRepo) Upsert(ctx context.Context, post *model.BlogPost) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blog_posts (id, title, category, image_url, link, excerpt, content,
		                         is_featured, published_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (id) DO UPDATE SET
		    title        = EXCLUDED.title,
		    category     = EXCLUDED.category,
		    image_url    = EXCLUDED.image_url,
		    link         = EXCLUDED.link,
		    excerpt      = EXCLUDED.excerpt,
		    content      = EXCLUDED.content,
		    published_at = EXCLUDED.published_at,
		    updated_at   = now()`,
		post.ID, post.Title, post.Category, post.ImageURL, post.Link, post.Excerpt,
		post.Content, post.IsFeatured, post.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert blog post: %w", err)
	}
	return nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresBlogPostRepo) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	p, err := scanBlogPost(r.db.QueryRowContext(ctx,
		`SELECT `+blogPostColumns+` FROM blog_posts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blog post: %w", err)
	}
	return p, nil
}

// List は記事を公開日時の新しい順で最大limit件返す。
func (r *PostgresBlogPostRepo) List(ctx context.Context, limit int) ([]model.BlogPost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+blogPostColumns+` FROM blog_posts
		 ORDER BY published_at DESC, id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog posts: %w", err)
	}
	defer rows.Close()

	posts := []model.BlogPost{}
	for rows.Next() {
		p, err := scanBlogPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog posts: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ BlogPostRepository = (*PostgresBlogPostRepo)(nil)
