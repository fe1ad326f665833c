package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// BlogServiceInterface はブログハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	ListPosts(ctx context.Context, limit int) ([]model.BlogPost, error)
	GetPost(ctx context.Context, postID string) (*model.BlogPost, error)
}

// BlogHandler はブログ記事のHTTPハンドラー。
type BlogHandler struct {
	service BlogServiceInterface
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(service BlogServiceInterface) *BlogHandler {
	return &BlogHandler{service: service}
}

// blogPostSummary は一覧用の記事レスポンス。本文は含まない。
type blogPostSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	Link        string    `json:"link"`
	Excerpt     string    `json:"excerpt"`
	IsFeatured  bool      `json:"is_featured"`
	PublishedAt time.Time `json:"published_at"`
}

// blogPostResponse は記事詳細のレスポンス。Contentはサニタイズ済みHTML。
type blogPostResponse struct {
	blogPostSummary
	Content string `json:"content"`
}

func toBlogPostSummary(p *model.BlogPost) blogPostSummary {
	return blogPostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Link:        p.Link,
		Excerpt:     p.Excerpt,
		IsFeatured:  p.IsFeatured,
		PublishedAt: p.PublishedAt,
	}
}

// ListPosts は記事を新しい順で返す。
// GET /api/blog?limit=20
func (h *BlogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitには1以上の整数を指定してください"))
			return
		}
		limit = n
	}

	posts, err := h.service.ListPosts(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]blogPostSummary, 0, len(posts))
	for i := range posts {
		res = append(res, toBlogPostSummary(&posts[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetPost は記事詳細を返す。
// GET /api/blog/{id}
func (h *BlogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blogPostResponse{
		blogPostSummary: toBlogPostSummary(post),
		Content:         post.Content,
	})
}
