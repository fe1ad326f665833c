package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	HSTS              bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 決済Webhook
	WebhookPath    string
	WebhookHandler http.Handler

	// コース・ブログ・ユーザー
	CourseService     CourseServiceInterface
	BlogService       BlogServiceInterface
	UserService       UserServiceInterface
	EnrollmentService EnrolledCourseLister

	// 画面
	PageHandler http.Handler
	Shell       http.Handler

	// 運用
	Health  http.Handler
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → (Session) → RateLimit
//
// Webhookは署名で認証するためCSRF検証の対象外とし、IP単位のレート制限のみ掛ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	csrf := deps.CSRFConfig
	if deps.WebhookPath != "" {
		csrf.ExemptPaths = append(append([]string{}, csrf.ExemptPaths...), deps.WebhookPath)
	}
	r.Use(middleware.NewCSRFMiddleware(csrf))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	courseHandler := NewCourseHandler(deps.CourseService)
	blogHandler := NewBlogHandler(deps.BlogService)
	userHandler := NewUserHandler(deps.UserService, deps.EnrollmentService)

	// --- 認証不要のルート ---

	if deps.Health != nil {
		r.Method(http.MethodGet, "/health", deps.Health)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrf))

	if deps.WebhookHandler != nil && deps.WebhookPath != "" {
		r.With(deps.RateLimiter.WebhookMiddleware()).Method(http.MethodPost, deps.WebhookPath, deps.WebhookHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.SignIn)
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.Post("/logout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Put("/password", authHandler.ChangePassword)
		})
	})

	r.Get("/api/courses", courseHandler.ListCourses)
	r.Get("/api/courses/{id}", courseHandler.GetCourse)
	r.Get("/api/blog", blogHandler.ListPosts)
	r.Get("/api/blog/{id}", blogHandler.GetPost)

	// 画面はログイン状態で内容が変わるためセッションは任意
	if deps.PageHandler != nil {
		r.With(middleware.NewOptionalSessionMiddleware(deps.SessionFinder)).
			Method(http.MethodGet, "/pages/*", deps.PageHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/courses/{id}/lessons", courseHandler.ListLessons)

		r.Route("/api/me", func(r chi.Router) {
			r.Delete("/", userHandler.Withdraw)
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Get("/courses", userHandler.ListEnrolledCourses)
		})
	})

	if deps.Shell != nil {
		r.Method(http.MethodGet, "/", deps.Shell)
		r.Method(http.MethodGet, "/static/*", deps.Shell)
	}

	return r
}
