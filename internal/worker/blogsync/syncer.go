// Package blogsync は外部ブログフィードの定期取り込みを提供する。
// 設定されたRSS/Atomフィードを取得し、本文をサニタイズしてblog_postsにアップサートする。
package blogsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/EtimGeorge/NexusAcademy-project/internal/blog"
	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
	"github.com/EtimGeorge/NexusAcademy-project/internal/security"
)

// DefaultCategory はカテゴリのない記事に付けるカテゴリ。
const DefaultCategory = "General"

// postIDNamespace は記事IDの生成に使う名前空間。
var postIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://nexusacademy.app/blog"))

// 失敗理由ラベル
const (
	reasonValidation = "validation"
	reasonRequest    = "request"
	reasonHTTPStatus = "http_status"
	reasonBody       = "body"
	reasonParse      = "parse"
	reasonUpsert     = "upsert"
)

// URLValidator はSSRF検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// SyncError は同期失敗の原因を保持する。
type SyncError struct {
	Reason string
	Status int
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("blog sync failed (%s, status %d): %v", e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("blog sync failed (%s): %v", e.Reason, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Result は1回の同期の結果。
type Result struct {
	Status      int
	NotModified bool
	Upserted    int
	Skipped     int
}

// Syncer は1つのフィードURLを取得し、記事を保存する。
// ETag/Last-Modifiedを保持して条件付きGETを行う。
type Syncer struct {
	feedURL     string
	client      *http.Client
	validator   URLValidator
	posts       repository.BlogPostRepository
	sanitizer   security.Sanitizer
	metrics     metrics.BlogSyncRecorder
	logger      *slog.Logger
	maxBodySize int64
	now         func() time.Time

	mu           sync.Mutex
	etag         string
	lastModified string
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
// clientにはSSRF防止付きのクライアントを渡す。
func NewSyncer(
	feedURL string,
	client *http.Client,
	validator URLValidator,
	posts repository.BlogPostRepository,
	sanitizer security.Sanitizer,
	recorder metrics.BlogSyncRecorder,
	logger *slog.Logger,
	maxBodySize int64,
) *Syncer {
	return &Syncer{
		feedURL:     feedURL,
		client:      client,
		validator:   validator,
		posts:       posts,
		sanitizer:   sanitizer,
		metrics:     recorder,
		logger:      logger,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// Sync はフィードを1回取得して記事をアップサートする。
// 304の場合は何も書き込まない。失敗時は*SyncErrorを返す。
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	if err := s.validator.ValidateURL(s.feedURL); err != nil {
		return res, s.fail(&SyncError{Reason: reasonValidation, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return res, s.fail(&SyncError{Reason: reasonRequest, Err: err})
	}
	req.Header.Set("User-Agent", "NexusAcademy-BlogSync/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	s.mu.Lock()
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	if s.lastModified != "" {
		req.Header.Set("If-Modified-Since", s.lastModified)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return res, s.fail(&SyncError{Reason: reasonRequest, Err: err})
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	s.metrics.RecordHTTPStatus(resp.StatusCode)
	s.metrics.RecordFetchLatency(time.Since(start))

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		res.NotModified = true
		s.metrics.RecordSyncSuccess()
		s.logger.Info("ブログフィードは未変更です（304）",
			slog.String("feed_url", s.feedURL),
		)
		return res, nil
	default:
		return res, s.fail(&SyncError{
			Reason: reasonHTTPStatus,
			Status: resp.StatusCode,
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		})
	}

	body, err := security.ReadLimited(resp.Body, s.maxBodySize)
	if err != nil {
		return res, s.fail(&SyncError{Reason: reasonBody, Status: resp.StatusCode, Err: err})
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return res, s.fail(&SyncError{Reason: reasonParse, Status: resp.StatusCode, Err: err})
	}

	posts, skipped := s.convertItems(parsed.Items)
	res.Skipped = skipped

	for i := range posts {
		if err := s.posts.Upsert(ctx, &posts[i]); err != nil {
			s.metrics.RecordPostsUpserted(res.Upserted)
			return res, s.fail(&SyncError{Reason: reasonUpsert, Status: resp.StatusCode, Err: err})
		}
		res.Upserted++
	}
	s.metrics.RecordPostsUpserted(res.Upserted)

	// 保存が完了してから検証子を更新する
	s.mu.Lock()
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	s.mu.Unlock()

	s.metrics.RecordSyncSuccess()
	s.logger.Info("ブログフィードの同期が完了しました",
		slog.String("feed_url", s.feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("posts_upserted", res.Upserted),
		slog.Int("items_skipped", res.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return res, nil
}

func (s *Syncer) fail(err *SyncError) error {
	s.metrics.RecordSyncFailure(err.Reason)
	s.logger.Error("ブログフィードの同期に失敗しました",
		slog.String("feed_url", s.feedURL),
		slog.String("reason", err.Reason),
		slog.Int("http_status", err.Status),
		slog.String("error", err.Err.Error()),
	)
	return err
}

// convertItems はgofeedの記事をBlogPostに変換する。
// タイトルがない記事と、GUIDもリンクもない記事はスキップする。
func (s *Syncer) convertItems(items []*gofeed.Item) ([]model.BlogPost, int) {
	posts := make([]model.BlogPost, 0, len(items))
	skipped := 0
	now := s.now().UTC()

	for _, item := range items {
		if item == nil {
			skipped++
			continue
		}

		title := strings.TrimSpace(item.Title)
		key := strings.TrimSpace(item.GUID)
		link := strings.TrimSpace(item.Link)
		if link == "" && isHTTPURL(key) {
			link = key
		}
		if key == "" {
			key = link
		}
		if title == "" || key == "" {
			skipped++
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		content = s.sanitizer.Sanitize(content)

		summary := item.Description
		if summary == "" {
			summary = content
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed.UTC()
		}

		posts = append(posts, model.BlogPost{
			ID:          PostID(key),
			Title:       title,
			Category:    itemCategory(item),
			ImageURL:    itemImage(item),
			Link:        link,
			Excerpt:     blog.Excerpt(s.sanitizer.Sanitize(summary), blog.DefaultExcerptLength),
			Content:     content,
			PublishedAt: publishedAt,
			UpdatedAt:   now,
		})
	}

	return posts, skipped
}

// PostID はフィード記事のGUIDまたはリンクから安定した記事IDを導出する。
// 同じキーからは常に同じIDが得られる。
func PostID(key string) string {
	return uuid.NewSHA1(postIDNamespace, []byte(key)).String()
}

func itemCategory(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return DefaultCategory
}

// itemImage はhttpsの画像URLのみを返す。
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && isHTTPSURL(item.Image.URL) {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPSURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isHTTPSURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "https" && u.Host != ""
}
