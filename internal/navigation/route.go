// Package navigation はハッシュルーティングされた画面遷移の中核を提供する。
// ルート表の解決、セッションの保持、アクセス制御、ページモジュールの起動を扱う。
package navigation

import (
	"fmt"
	"strings"
)

// Access はルートのアクセス区分を表す。
type Access int

const (
	// AccessPublic は未ログインでも表示できるルート。
	AccessPublic Access = iota
	// AccessPrivate はログイン済みユーザーのみ表示できるルート。
	AccessPrivate
)

// String はアクセス区分の表示名を返す。
func (a Access) String() string {
	if a == AccessPrivate {
		return "private"
	}
	return "public"
}

// PageID はページモジュールの識別子。
type PageID string

// 画面の識別子
const (
	PageHome         PageID = "home"
	PageLogin        PageID = "login"
	PageSignup       PageID = "signup"
	PageBlog         PageID = "blog"
	PageCourses      PageID = "courses"
	PageWhyNexus     PageID = "why-nexus"
	PageDashboard    PageID = "dashboard"
	PageProfile      PageID = "profile"
	PageSettings     PageID = "settings"
	PageCoursePlayer PageID = "course-player"
	PageSinglePost   PageID = "single-post"
	PageCourseDetail PageID = "course-detail"
)

// 遷移先として使う固定パス
const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathDashboard = "/dashboard"
)

// ParamID は動的セグメントの値を格納するパラメータ名。
const ParamID = "id"

// dynamicSuffix は動的ルートのパターン末尾。
const dynamicSuffix = "/{" + ParamID + "}"

// Params はルートから取り出したパラメータ。
type Params map[string]string

// Route はルート表の1エントリ。
// Patternが"/{id}"で終わる場合は、その前までをプレフィックスとする動的ルートになる。
type Route struct {
	Pattern string
	Page    PageID
	Access  Access
}

// IsDynamic は動的ルートかどうかを返す。
func (r Route) IsDynamic() bool {
	return strings.HasSuffix(r.Pattern, dynamicSuffix)
}

func (r Route) prefix() string {
	return strings.TrimSuffix(r.Pattern, dynamicSuffix)
}

// Match はパスの解決結果。
type Match struct {
	Path   string
	Route  Route
	Params Params
}

// RouteTable は起動時に構築し、以後変更しないルート表。
// 変更しないため複数goroutineから同期なしで参照できる。
type RouteTable struct {
	static  map[string]Route
	dynamic []Route
	routes  []Route
}

// NewRouteTable はroutesからルート表を構築する。
// 動的ルートはroutes内の出現順に評価される。
// パターンの重複、空のパターン、"/"で始まらないパターンはエラーになる。
func NewRouteTable(routes []Route) (*RouteTable, error) {
	t := &RouteTable{
		static: make(map[string]Route, len(routes)),
		routes: make([]Route, 0, len(routes)),
	}
	seen := make(map[string]bool, len(routes))

	for _, r := range routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route pattern must start with '/': %q", r.Pattern)
		}
		if r.Page == "" {
			return nil, fmt.Errorf("route %q has no page", r.Pattern)
		}
		if seen[r.Pattern] {
			return nil, fmt.Errorf("duplicate route pattern: %q", r.Pattern)
		}
		seen[r.Pattern] = true

		if r.IsDynamic() {
			if r.prefix() == "" || strings.Contains(r.prefix(), "{") {
				return nil, fmt.Errorf("invalid dynamic route pattern: %q", r.Pattern)
			}
			t.dynamic = append(t.dynamic, r)
		} else {
			t.static[r.Pattern] = r
		}
		t.routes = append(t.routes, r)
	}

	return t, nil
}

// DefaultRoutes はアプリケーションのルート定義を返す。
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/", Page: PageHome, Access: AccessPublic},
		{Pattern: "/login", Page: PageLogin, Access: AccessPublic},
		{Pattern: "/signup", Page: PageSignup, Access: AccessPublic},
		{Pattern: "/blog", Page: PageBlog, Access: AccessPublic},
		{Pattern: "/courses", Page: PageCourses, Access: AccessPublic},
		{Pattern: "/why-nexus", Page: PageWhyNexus, Access: AccessPublic},
		{Pattern: "/dashboard", Page: PageDashboard, Access: AccessPrivate},
		{Pattern: "/profile", Page: PageProfile, Access: AccessPrivate},
		{Pattern: "/settings", Page: PageSettings, Access: AccessPrivate},
		{Pattern: "/course/{id}", Page: PageCoursePlayer, Access: AccessPrivate},
		{Pattern: "/blog/{id}", Page: PageSinglePost, Access: AccessPublic},
		{Pattern: "/courses/{id}", Page: PageCourseDetail, Access: AccessPublic},
	}
}

// Routes は登録順のルート一覧を返す。
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Resolve はpathに一致するルートを返す。
// 完全一致を優先し、次に動的ルートを登録順に試す。
// 動的ルートは"<prefix>/<segment>"の形でsegmentが空でなく"/"を含まない場合のみ一致する。
// 大文字小文字を区別し、末尾の"/"は正規化しない。
func (t *RouteTable) Resolve(path string) (Match, bool) {
	if r, ok := t.static[path]; ok {
		return Match{Path: path, Route: r, Params: Params{}}, true
	}

	for _, r := range t.dynamic {
		segment, ok := strings.CutPrefix(path, r.prefix()+"/")
		if !ok || segment == "" || strings.Contains(segment, "/") {
			continue
		}
		return Match{Path: path, Route: r, Params: Params{ParamID: segment}}, true
	}

	return Match{}, false
}

// PathFromFragment はロケーションフラグメント（"#/course/1"など）からパスを取り出す。
// 空の場合は"/"を返す。
func PathFromFragment(fragment string) string {
	path := strings.TrimPrefix(fragment, "#")
	if path == "" {
		return PathHome
	}
	return path
}

// IsAuthOnly はログイン済みユーザーに表示しない認証画面かどうかを返す。
func IsAuthOnly(path string) bool {
	return path == PathLogin || path == PathSignup
}
