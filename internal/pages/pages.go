// Package pages はナビゲーションルーターから起動される各画面のページモジュールを提供する。
// 画面のHTMLは埋め込みテンプレートから描画し、データはサービス層のインターフェース経由で取得する。
package pages

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
	"github.com/EtimGeorge/NexusAcademy-project/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

// CourseCatalog はコース一覧・詳細・レッスンの取得に必要なインターフェース。
// course.Serviceが実装する。
type CourseCatalog interface {
	ListCourses(ctx context.Context, category string) ([]model.Course, error)
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error)
}

// EnrollmentReader は受講登録の参照に必要なインターフェース。
// enrollment.Serviceが実装する。
type EnrollmentReader interface {
	ListEnrolledCourses(ctx context.Context, userID string) ([]model.Course, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// BlogReader はブログ記事の参照に必要なインターフェース。
// blog.Serviceが実装する。
type BlogReader interface {
	ListPosts(ctx context.Context, limit int) ([]model.BlogPost, error)
	GetPost(ctx context.Context, postID string) (*model.BlogPost, error)
}

// ProfileReader はプロフィールの参照に必要なインターフェース。
// user.Serviceが実装する。
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// PostViewRecorder は記事の閲覧数を記録する。
// metrics.Collectorが実装する。
type PostViewRecorder interface {
	RecordPostView()
}

// Deps はページモジュールが使用する依存。
type Deps struct {
	Courses     CourseCatalog
	Enrollments EnrollmentReader
	Blog        BlogReader
	Profiles    ProfileReader
	Sanitizer   security.Sanitizer
	PostViews   PostViewRecorder
	// PaystackPublicKey はブラウザ側のインラインチェックアウトに渡す公開キー。
	PaystackPublicKey string
	// Now はチェックアウト参照番号の生成に使う時刻。nilの場合はtime.Now。
	Now func() time.Time
}

func (d Deps) validate() error {
	var missing []string
	if d.Courses == nil {
		missing = append(missing, "Courses")
	}
	if d.Enrollments == nil {
		missing = append(missing, "Enrollments")
	}
	if d.Blog == nil {
		missing = append(missing, "Blog")
	}
	if d.Profiles == nil {
		missing = append(missing, "Profiles")
	}
	if d.Sanitizer == nil {
		missing = append(missing, "Sanitizer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("page dependencies are not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewRegistry はすべての画面のページモジュールを登録したRegistryを返す。
func NewRegistry(deps Deps) (navigation.Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r, err := newRenderer()
	if err != nil {
		return nil, err
	}

	catalog := &catalogPages{r: r, deps: deps}
	learning := &learningPages{r: r, deps: deps}
	account := &accountPages{r: r, deps: deps}

	return navigation.Registry{
		navigation.PageHome:         navigation.PageFunc(catalog.home),
		navigation.PageCourses:      navigation.PageFunc(catalog.courses),
		navigation.PageCourseDetail: navigation.PageFunc(catalog.courseDetail),
		navigation.PageLogin:        r.static("login"),
		navigation.PageSignup:       r.static("signup"),
		navigation.PageWhyNexus:     r.static("why-nexus"),
		navigation.PageDashboard:    navigation.PageFunc(learning.dashboard),
		navigation.PageCoursePlayer: navigation.PageFunc(learning.coursePlayer),
		navigation.PageProfile:      navigation.PageFunc(account.profile),
		navigation.PageSettings:     navigation.PageFunc(account.settings),
		navigation.PageBlog:         navigation.PageFunc((&blogListPage{r: r, deps: deps}).Render),
		navigation.PageSinglePost:   &singlePostPage{r: r, deps: deps},
	}, nil
}

// renderer は埋め込みテンプレートを保持し、名前付きテンプレートを描画する。
type renderer struct {
	tmpl *template.Template
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.New("pages").Funcs(template.FuncMap{
		"naira":      formatNaira,
		"date":       formatDate,
		"coursePath": func(id string) string { return "#/course/" + id },
		"detailPath": func(id string) string { return "#/courses/" + id },
		"postPath":   func(id string) string { return "#/blog/" + id },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return &renderer{tmpl: tmpl}, nil
}

// navbar はナビゲーションバーの表示に使うログイン状態。
type navbar struct {
	LoggedIn bool
	Email    string
}

func navbarFrom(ctx context.Context) navbar {
	u := navigation.UserFromContext(ctx)
	if u == nil {
		return navbar{}
	}
	return navbar{LoggedIn: true, Email: u.Email}
}

// page はすべての画面テンプレートに渡す共通データ。
type page struct {
	Nav  navbar
	Data any
}

// execute はnameのテンプレートを描画する。
// contextがキャンセル済みの場合は描画しない。
func (r *renderer) execute(ctx context.Context, name string, data any) (template.HTML, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, page{Nav: navbarFrom(ctx), Data: data}); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// static はデータを持たない画面のページモジュールを返す。
func (r *renderer) static(name string) navigation.PageModule {
	return navigation.PageFunc(func(ctx context.Context, _ navigation.Params) (template.HTML, error) {
		return r.execute(ctx, name, nil)
	})
}

// notFound は対象が見つからない場合の画面を描画する。
// ルーターのnot-found表示とは別に、画面内でメッセージと戻り先を示す。
func (r *renderer) notFound(ctx context.Context, message, backHref, backLabel string) (template.HTML, error) {
	return r.execute(ctx, "missing", struct {
		Message   string
		BackHref  string
		BackLabel string
	}{message, backHref, backLabel})
}

// isNotFound はerrが指定コードのAPIErrorかどうかを返す。
func isNotFound(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// currentUser はcontextのセッションからユーザーを取り出す。
// 非公開ルートではルーターが未ログインを除外するため、nilはエラーとして扱う。
func currentUser(ctx context.Context) (*navigation.User, error) {
	u := navigation.UserFromContext(ctx)
	if u == nil {
		return nil, errors.New("no user in navigation context")
	}
	return u, nil
}

// formatNaira はNGN単位の価格を"₦12,500"の形式にする。
func formatNaira(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "₦" + b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
