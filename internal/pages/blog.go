package pages

import (
	"context"
	"fmt"
	"html/template"

	"github.com/EtimGeorge/NexusAcademy-project/internal/blog"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
)

type blogListPage struct {
	r    *renderer
	deps Deps
}

// Render は注目記事を先頭に、残りを新しい順に並べた記事一覧を描画する。
func (p *blogListPage) Render(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	posts, err := p.deps.Blog.ListPosts(ctx, blog.DefaultListLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load posts: %w", err)
	}

	var featured *model.BlogPost
	rest := make([]model.BlogPost, 0, len(posts))
	for i := range posts {
		if featured == nil && posts[i].IsFeatured {
			featured = &posts[i]
			continue
		}
		rest = append(rest, posts[i])
	}

	return p.r.execute(ctx, "blog", struct {
		Featured *model.BlogPost
		Posts    []model.BlogPost
	}{featured, rest})
}

// singlePostPage は記事本文を表示し、配置後に閲覧数を記録する。
type singlePostPage struct {
	r    *renderer
	deps Deps
}

// Render は記事本文をサニタイズして描画する。
// 保存時にもサニタイズしているが、表示時にも同じポリシーを適用する。
func (p *singlePostPage) Render(ctx context.Context, params navigation.Params) (template.HTML, error) {
	postID := params[navigation.ParamID]

	post, err := p.deps.Blog.GetPost(ctx, postID)
	if isNotFound(err, model.ErrCodePostNotFound) {
		return p.r.notFound(ctx, "Post not found.", "#/blog", "Back to blog")
	}
	if err != nil {
		return "", fmt.Errorf("failed to load post %s: %w", postID, err)
	}

	return p.r.execute(ctx, "single-post", struct {
		Post *model.BlogPost
		Body template.HTML
	}{post, template.HTML(p.deps.Sanitizer.Sanitize(post.Content))})
}

// Init は記事の閲覧を記録する。
func (p *singlePostPage) Init(ctx context.Context, _ navigation.Params) error {
	if p.deps.PostViews != nil {
		p.deps.PostViews.RecordPostView()
	}
	return nil
}

var _ navigation.Initializer = (*singlePostPage)(nil)
