package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/EtimGeorge/NexusAcademy-project/internal/enrollment"
	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/paystack"
)

const testWebhookPath = "/webhooks/paystack-3f9c2a"

// mockSessionFinderForRouter はRouter統合テスト用のSessionFinderモック。
type mockSessionFinderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinderForRouter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

type routerFixture struct {
	router      http.Handler
	enrollments *memEnrollmentRepo
	registry    *prometheus.Registry
	pinger      *mockPinger
}

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter(t *testing.T) *routerFixture {
	t.Helper()
	return createTestRouterWithLimits(t, middleware.DefaultRateLimiterConfig())
}

// createTestRouterWithLimits はレート制限の設定を指定してルーターを構築する。
func createTestRouterWithLimits(t *testing.T, limits middleware.RateLimiterConfig) *routerFixture {
	t.Helper()

	sessionFinder := &mockSessionFinderForRouter{
		sessions: map[string]*model.Session{
			"valid-session": {
				ID:        "valid-session",
				UserID:    "user-test-1",
				ExpiresAt: time.Now().Add(time.Hour),
			},
			"other-session": {
				ID:        "other-session",
				UserID:    "user-test-2",
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	enrollRepo := newMemEnrollmentRepo()
	pinger := &mockPinger{}

	pageHandler, _ := newTestPageHandler(t, &mockUserService{})

	rl := middleware.NewRateLimiter(limits)
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		SessionFinder:     sessionFinder,
		CORSAllowedOrigin: "https://nexus.example.com",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{},
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig,
		WebhookPath:       testWebhookPath,
		WebhookHandler:    NewWebhookHandler(testWebhookSecret, enrollment.NewService(enrollRepo, nil), collector),
		CourseService: &mockCourseService{
			getCourseFn: func(ctx context.Context, courseID string) (*model.Course, error) {
				return &model.Course{ID: courseID, Title: "Go Basics"}, nil
			},
		},
		BlogService:       &mockBlogService{},
		UserService:       &mockUserService{},
		EnrollmentService: &mockEnrolledCourseLister{},
		PageHandler:       pageHandler,
		Shell: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<!doctype html>"))
		}),
		Health:  NewHealthHandler(pinger),
		Metrics: metrics.Handler(reg),
	}

	return &routerFixture{
		router:      NewRouter(deps),
		enrollments: enrollRepo,
		registry:    reg,
		pinger:      pinger,
	}
}

func serve(f *routerFixture, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// withCSRF はダブルサブミット用のCookieとヘッダーを付与する。
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	return req
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-session"})
	return req
}

// TestNewRouter_Webhook_EndToEnd は署名付きWebhookがCSRF・セッションなしで受講登録まで到達することを検証する。
func TestNewRouter_Webhook_EndToEnd(t *testing.T) {
	f := createTestRouter(t)

	req := signedWebhookRequest(chargeSuccessBody)
	req.URL.Path = testWebhookPath
	w := serve(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%q)", w.Code, http.StatusOK, w.Body.String())
	}
	got, _ := f.enrollments.FindByID(context.Background(), "u1_c1")
	if got == nil {
		t.Fatal("enrollment u1_c1 was not written")
	}
	if got.CourseTitle != "Go" || got.PaymentReference != "ref_1" || got.PaymentProvider != "paystack" {
		t.Errorf("enrollment = %+v", *got)
	}

	// 処理結果がメトリクスとして公開される
	mw := serve(f, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(mw.Body)
	if !strings.Contains(string(body), `nexus_webhook_events_total{outcome="enrolled"} 1`) {
		t.Errorf("metrics should include enrolled webhook counter, got:\n%s", body)
	}
}

func TestNewRouter_Webhook_CorruptedSignature(t *testing.T) {
	f := createTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, testWebhookPath, strings.NewReader(chargeSuccessBody))
	req.Header.Set(paystack.SignatureHeader, strings.Repeat("0", 128))
	w := serve(f, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if f.enrollments.count() != 0 {
		t.Error("enrollment should not be written")
	}
}

// TestNewRouter_Webhook_OtherPathsNotExempt はWebhookのパス以外のPOSTはCSRF検証されることを検証する。
func TestNewRouter_Webhook_OtherPathsNotExempt(t *testing.T) {
	f := createTestRouter(t)

	req := signedWebhookRequest(chargeSuccessBody)
	req.URL.Path = "/webhooks/paystack"
	w := serve(f, req)

	if w.Code == http.StatusOK {
		t.Errorf("status = %d, guessed webhook path should not be accepted", w.Code)
	}
	if f.enrollments.count() != 0 {
		t.Error("enrollment should not be written")
	}
}

func TestNewRouter_PublicRoutes(t *testing.T) {
	f := createTestRouter(t)

	paths := []string{
		"/api/courses",
		"/api/courses/c1",
		"/api/blog",
		"/api/csrf-token",
		"/auth/me",
		"/pages/",
		"/health",
		"/",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, p, nil)
			if p == "/auth/me" {
				req = withSession(req)
			}
			w := serve(f, req)
			if w.Code != http.StatusOK {
				t.Errorf("GET %s status = %d, want %d", p, w.Code, http.StatusOK)
			}
		})
	}
}

func TestNewRouter_ProtectedRoutes_RequireSession(t *testing.T) {
	f := createTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/courses/c1/lessons"},
		{http.MethodGet, "/api/me/profile"},
		{http.MethodGet, "/api/me/courses"},
		{http.MethodPut, "/api/me/profile"},
		{http.MethodDelete, "/api/me"},
		{http.MethodPut, "/auth/password"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := withCSRF(httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)))
			w := serve(f, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestNewRouter_ProtectedRoute_WithSession(t *testing.T) {
	f := createTestRouter(t)

	w := serve(f, withSession(httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var res userResponse
	json.NewDecoder(w.Body).Decode(&res)
	if res.ID != "user-test-1" {
		t.Errorf("id = %q, want user-test-1", res.ID)
	}
}

func TestNewRouter_StateChange_RequiresCSRF(t *testing.T) {
	f := createTestRouter(t)

	t.Run("トークンなしは403", func(t *testing.T) {
		req := withSession(httptest.NewRequest(http.MethodPut, "/api/me/profile", strings.NewReader(`{"first_name":"Ada"}`)))
		w := serve(f, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("トークンありは通過", func(t *testing.T) {
		req := withCSRF(withSession(httptest.NewRequest(http.MethodPut, "/api/me/profile", strings.NewReader(`{"first_name":"Ada"}`))))
		w := serve(f, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("ログインもCSRF検証の対象", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw123456"}`))
		w := serve(f, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestNewRouter_Pages_UsesOptionalSession はセッションの有無で画面の結果が変わることを検証する。
func TestNewRouter_Pages_UsesOptionalSession(t *testing.T) {
	f := createTestRouter(t)

	anon := decodePageResponse(t, serve(f, httptest.NewRequest(http.MethodGet, "/pages/dashboard", nil)))
	if anon.Outcome != "redirect" || anon.Redirect != "/login" {
		t.Errorf("anonymous result = %+v, want redirect to /login", anon)
	}

	authed := decodePageResponse(t, serve(f, withSession(httptest.NewRequest(http.MethodGet, "/pages/dashboard", nil))))
	if authed.Outcome != "active" {
		t.Errorf("authenticated outcome = %q, want active", authed.Outcome)
	}
}

func TestNewRouter_Health(t *testing.T) {
	f := createTestRouter(t)

	w := serve(f, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	f.pinger.err = errors.New("connection refused")
	w = serve(f, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("health response should not leak error details")
	}
}

func TestNewRouter_SecurityHeadersAndRequestID(t *testing.T) {
	f := createTestRouter(t)

	w := serve(f, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request ID header")
	}
}

// TestNewRouter_MiddlewareOrder はCSRF・セッション・レート制限の適用順序を実際のルーティングで検証する。
func TestNewRouter_MiddlewareOrder(t *testing.T) {
	t.Run("CSRFで拒否されたログインは認証のレート制限を消費しない", func(t *testing.T) {
		f := createTestRouterWithLimits(t, middleware.NewRateLimiterConfig(120, 1))

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw123456"}`))
			if w := serve(f, req); w.Code != http.StatusForbidden {
				t.Fatalf("attempt %d: status = %d, want %d", i, w.Code, http.StatusForbidden)
			}
		}

		login := func() int {
			req := withCSRF(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw123456"}`)))
			return serve(f, req).Code
		}
		if code := login(); code != http.StatusOK {
			t.Fatalf("first login status = %d, want %d", code, http.StatusOK)
		}
		if code := login(); code != http.StatusTooManyRequests {
			t.Errorf("second login status = %d, want %d", code, http.StatusTooManyRequests)
		}
	})

	t.Run("Webhookは認証のレート制限と独立している", func(t *testing.T) {
		f := createTestRouterWithLimits(t, middleware.NewRateLimiterConfig(120, 1))

		serve(f, withCSRF(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw123456"}`))))

		req := signedWebhookRequest(chargeSuccessBody)
		req.URL.Path = testWebhookPath
		if w := serve(f, req); w.Code != http.StatusOK {
			t.Errorf("webhook status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("未ログインのリクエストはユーザー単位の制限より先にセッションで拒否される", func(t *testing.T) {
		f := createTestRouterWithLimits(t, middleware.NewRateLimiterConfig(2, 10))

		for i := 0; i < 5; i++ {
			w := serve(f, httptest.NewRequest(http.MethodGet, "/api/me/profile", nil))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("attempt %d: status = %d, want %d", i, w.Code, http.StatusUnauthorized)
			}
		}

		for i := 0; i < 2; i++ {
			if w := serve(f, withSession(httptest.NewRequest(http.MethodGet, "/api/me/profile", nil))); w.Code != http.StatusOK {
				t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
			}
		}
		w := serve(f, withSession(httptest.NewRequest(http.MethodGet, "/api/me/courses", nil)))
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if w.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})

	t.Run("ユーザー単位の制限は他のユーザーと画面取得に影響しない", func(t *testing.T) {
		f := createTestRouterWithLimits(t, middleware.NewRateLimiterConfig(1, 10))

		serve(f, withSession(httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)))
		if w := serve(f, withSession(httptest.NewRequest(http.MethodGet, "/api/me/profile", nil))); w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
		}

		other := httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)
		other.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "other-session"})
		if w := serve(f, other); w.Code != http.StatusOK {
			t.Errorf("other user status = %d, want %d", w.Code, http.StatusOK)
		}

		if w := serve(f, withSession(httptest.NewRequest(http.MethodGet, "/pages/dashboard", nil))); w.Code != http.StatusOK {
			t.Errorf("pages status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
