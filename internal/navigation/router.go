package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Outcome はナビゲーションサイクルの終了状態。
type Outcome string

const (
	// OutcomeActive はページモジュールの描画と初期化が完了した状態。
	OutcomeActive Outcome = "active"
	// OutcomeRedirect は別パスへの遷移が必要な状態。Result.Redirectに遷移先が入る。
	OutcomeRedirect Outcome = "redirect"
	// OutcomeNotFound は一致するルートがない状態。
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed はページモジュールの描画または初期化に失敗した状態。
	OutcomeFailed Outcome = "failed"
	// OutcomeStale は後から開始されたサイクルに追い越され、結果を反映しなかった状態。
	OutcomeStale Outcome = "stale"
)

// Result はナビゲーションサイクルの結果。
type Result struct {
	Path       string
	Page       PageID
	Outcome    Outcome
	Redirect   string
	Generation uint64
	Err        error
}

// Router はナビゲーションイベントと認証状態の変化を受けて画面を切り替える。
// 各サイクルには世代番号が振られ、より新しいサイクルが始まると古いサイクルは
// contextがキャンセルされ、描画結果の配置や初期化を行わない。
type Router struct {
	table    *RouteTable
	registry Registry
	session  SessionSource
	view     View
	logger   *slog.Logger
	observe  func(Result)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// Option はRouterの任意設定。
type Option func(*Router)

// WithLogger はログ出力先を指定する。
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithObserver は各サイクル終了時に呼ばれる関数を指定する。
func WithObserver(fn func(Result)) Option {
	return func(r *Router) { r.observe = fn }
}

// NewRouter はRouterを生成する。
// ルート表の全ページがregistryに登録されていない場合はエラーを返す。
func NewRouter(table *RouteTable, registry Registry, session SessionSource, view View, opts ...Option) (*Router, error) {
	if err := registry.Validate(table); err != nil {
		return nil, err
	}
	r := &Router{
		table:    table,
		registry: registry,
		session:  session,
		view:     view,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// begin は新しいサイクルを開始し、前のサイクルをキャンセルする。
func (r *Router) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	return cctx, r.generation, cancel
}

// isCurrent は世代genが最新のサイクルかどうかを返す。
func (r *Router) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen
}

// applyIfCurrent は世代genが最新の場合のみfnを実行する。
// 判定と画面への反映の間に新しいサイクルが始まらないよう、ロックを保持したまま実行する。
func (r *Router) applyIfCurrent(gen uint64, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}
	fn()
	return true
}

// CurrentGeneration は最後に開始したサイクルの世代番号を返す。
func (r *Router) CurrentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Navigate はpathに対する1回のナビゲーションサイクルを実行する。
// セッションはサイクル開始時に1回だけ取得し、ページモジュールにはcontext経由で渡す。
// ページモジュールの失敗やpanicはエラー表示に変換し、呼び出し元には伝播させない。
func (r *Router) Navigate(ctx context.Context, path string) (res Result) {
	cctx, gen, cancel := r.begin(ctx)
	defer cancel()

	r.view.ShowLoader()
	defer func() {
		// 追い越されたサイクルはローディング表示を新しいサイクルに委ねる
		if res.Outcome != OutcomeStale {
			r.view.HideLoader()
		}
		if r.observe != nil {
			r.observe(res)
		}
	}()

	user := r.session.Snapshot()
	res = Result{Path: path, Generation: gen}

	if user != nil && IsAuthOnly(path) {
		return r.redirect(res, PathDashboard)
	}

	match, ok := r.table.Resolve(path)
	if !ok {
		res.Outcome = OutcomeNotFound
		if !r.applyIfCurrent(gen, r.view.ShowNotFound) {
			res.Outcome = OutcomeStale
		}
		return res
	}
	res.Page = match.Route.Page

	if match.Route.Access == AccessPrivate && user == nil {
		return r.redirect(res, PathLogin)
	}

	return r.activate(ContextWithUser(cctx, user), gen, match, res)
}

func (r *Router) redirect(res Result, target string) Result {
	if !r.isCurrent(res.Generation) {
		res.Outcome = OutcomeStale
		return res
	}
	res.Outcome = OutcomeRedirect
	res.Redirect = target
	return res
}

// activate はページモジュールを描画し、配置後に初期化する。
func (r *Router) activate(ctx context.Context, gen uint64, match Match, res Result) Result {
	module := r.registry[match.Route.Page]

	err := r.runModule(ctx, gen, module, match.Params)
	switch {
	case errors.Is(err, errStale):
		res.Outcome = OutcomeStale
	case err != nil:
		res.Err = err
		r.logger.Error("failed to load page",
			slog.String("path", match.Path),
			slog.String("page", string(match.Route.Page)),
			slog.String("error", err.Error()),
		)
		res.Outcome = OutcomeFailed
		if !r.applyIfCurrent(gen, r.view.ShowError) {
			res.Outcome = OutcomeStale
		}
	default:
		res.Outcome = OutcomeActive
	}
	return res
}

var errStale = errors.New("navigation cycle superseded")

// runModule はRenderとInitを実行する。panicはエラーとして返す。
func (r *Router) runModule(ctx context.Context, gen uint64, module PageModule, params Params) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("page module panicked: %v", p)
		}
	}()

	if !r.applyIfCurrent(gen, r.view.Clear) {
		return errStale
	}

	el, err := module.Render(ctx, params)
	if err != nil {
		if !r.isCurrent(gen) {
			return errStale
		}
		return fmt.Errorf("render: %w", err)
	}

	if !r.applyIfCurrent(gen, func() { r.view.Mount(el) }) {
		return errStale
	}

	if init, ok := module.(Initializer); ok {
		err := init.Init(ctx, params)
		if !r.isCurrent(gen) {
			return errStale
		}
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	return nil
}
