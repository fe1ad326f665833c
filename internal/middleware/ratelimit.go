package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // ログインユーザーごとのAPI全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	AuthRate        rate.Limit    // 接続元IPごとのサインアップ・ログインのレート
	AuthBurst       int           // 認証のバーストサイズ
	WebhookRate     rate.Limit    // 接続元IPごとのWebhook受信のレート
	WebhookBurst    int           // Webhookのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// PerMinute は1分あたりのリクエスト数をrate.Limitに変換する。
func PerMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、認証 10 req/min/IP、Webhook 300 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// NewRateLimiterConfig は1分あたりの上限からRateLimiterConfigを生成する。
// バーストサイズは1分あたりの上限と同じにする。
func NewRateLimiterConfig(generalPerMinute, authPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     PerMinute(generalPerMinute),
		GeneralBurst:    generalPerMinute,
		AuthRate:        PerMinute(authPerMinute),
		AuthBurst:       authPerMinute,
		WebhookRate:     PerMinute(300),
		WebhookBurst:    300,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキー（ユーザーIDや接続元IP）ごとのリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は同一設定のリミッターをキーごとに管理する。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*keyedLimiter
}

func newLimiterSet(name string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:    name,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*keyedLimiter),
	}
}

// allow はkeyのリミッターからトークンを1つ消費できるかを返す。
func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.lastAccess = time.Now()
	s.mu.Unlock()

	return entry.limiter.Allow()
}

// sweep は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) sweep(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.Sub(entry.lastAccess) > ttl {
			delete(s.entries, key)
		}
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// retryAfterSeconds は1トークンが補充されるまでの秒数を返す。
func (s *limiterSet) retryAfterSeconds() int {
	if s.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1.0 / float64(s.limit)))
}

// middleware はkeyFnで得たキーごとにレート制限をかけるミドルウェアを返す。
// keyFnが空文字列を返した場合は401を返す。
func (s *limiterSet) middleware(keyFn func(r *http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				WriteUnauthorized(w)
				return
			}
			if !s.allow(key) {
				slog.Warn("rate limit exceeded",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("limit_type", s.name),
					slog.String("key", key),
				)
				WriteRateLimited(w, s.retryAfterSeconds())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はレート制限を管理する。
// ログインユーザーごとのAPI全般、接続元IPごとの認証とWebhookの3種類を独立に提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	auth    *limiterSet
	webhook *limiterSet

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		auth:    newLimiterSet("auth", config.AuthRate, config.AuthBurst),
		webhook: newLimiterSet("webhook", config.WebhookRate, config.WebhookBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出してもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware(func(r *http.Request) string {
		userID, _ := UserIDFromContext(r.Context())
		return userID
	})
}

// AuthMiddleware はサインアップ・ログイン用の接続元IPごとのレート制限ミドルウェアを返す。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return rl.auth.middleware(clientIP)
}

// WebhookMiddleware はWebhook受信用の接続元IPごとのレート制限ミドルウェアを返す。
func (rl *RateLimiter) WebhookMiddleware() func(next http.Handler) http.Handler {
	return rl.webhook.middleware(clientIP)
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.size()
}

// AuthLimiterCount は現在管理されている認証リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.size()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.auth.sweep(now, ttl)
	rl.webhook.sweep(now, ttl)
}

// clientIP はRemoteAddrのホスト部分を返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
