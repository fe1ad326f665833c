package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
)

// ページ領域に表示する固定の案内
const (
	notFoundHTML template.HTML = `<section class="page-message"><h2>Page not found</h2><p><a href="#/">Back to home</a></p></section>`
	errorHTML    template.HTML = `<section class="page-message"><h2>Something went wrong</h2><p>Please try again later.</p></section>`
)

// ProfileLookup はセッションのユーザーIDからメールアドレスを引くためのインターフェース。
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// PageHandler はSPAシェルに画面のHTML断片を返すHTTPハンドラー。
// リクエストごとにセッションを固定したナビゲーションルーターを組み立てて1サイクル実行する。
type PageHandler struct {
	table    *navigation.RouteTable
	registry navigation.Registry
	profiles ProfileLookup
	recorder metrics.NavigationRecorder
	logger   *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
// ルート表の全ページがregistryに登録されていない場合はエラーを返す。
func NewPageHandler(table *navigation.RouteTable, registry navigation.Registry, profiles ProfileLookup, recorder metrics.NavigationRecorder) (*PageHandler, error) {
	if err := registry.Validate(table); err != nil {
		return nil, err
	}
	return &PageHandler{
		table:    table,
		registry: registry,
		profiles: profiles,
		recorder: recorder,
		logger:   slog.Default(),
	}, nil
}

// pageResponse はナビゲーション結果のAPIレスポンス。
type pageResponse struct {
	Outcome  string `json:"outcome"`
	Path     string `json:"path"`
	Redirect string `json:"redirect,omitempty"`
	HTML     string `json:"html"`
}

// ServeHTTP はナビゲーションを1サイクル実行し結果を返す。
// GET /pages/*
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimLeft(strings.TrimPrefix(r.URL.Path, "/pages"), "/")

	user, err := h.sessionUser(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	view := &fragmentView{}
	router, err := navigation.NewRouter(h.table, h.registry, navigation.StaticSession{User: user}, view,
		navigation.WithLogger(h.logger),
		navigation.WithObserver(h.observe),
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := router.Navigate(r.Context(), path)

	status := http.StatusOK
	switch res.Outcome {
	case navigation.OutcomeNotFound:
		status = http.StatusNotFound
	case navigation.OutcomeFailed:
		status = http.StatusInternalServerError
	case navigation.OutcomeStale:
		// 単一サイクルでは追い越しは起きず、クライアント切断によるキャンセルのみ
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, pageResponse{
		Outcome:  string(res.Outcome),
		Path:     res.Path,
		Redirect: res.Redirect,
		HTML:     string(view.html),
	})
}

// sessionUser はオプショナルセッションミドルウェアが注入したユーザーIDから
// ナビゲーション用のユーザーを組み立てる。未ログインの場合はnilを返す。
func (h *PageHandler) sessionUser(r *http.Request) (*navigation.User, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, nil
	}

	u, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound {
			// 退会済みユーザーのセッションは未ログインとして扱う
			return nil, nil
		}
		return nil, err
	}
	return &navigation.User{ID: u.ID, Email: u.Email}, nil
}

func (h *PageHandler) observe(res navigation.Result) {
	if h.recorder != nil {
		h.recorder.RecordNavigation(string(res.Page), string(res.Outcome))
	}
}

// fragmentView はナビゲーションの描画結果をHTML断片として保持するView。
type fragmentView struct {
	html template.HTML
}

func (v *fragmentView) ShowLoader()            {}
func (v *fragmentView) HideLoader()            {}
func (v *fragmentView) Clear()                 { v.html = "" }
func (v *fragmentView) Mount(el template.HTML) { v.html = el }
func (v *fragmentView) ShowNotFound()          { v.html = notFoundHTML }
func (v *fragmentView) ShowError()             { v.html = errorHTML }
