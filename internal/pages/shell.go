package pages

import (
	"embed"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// ShellHandler はSPAシェル（"/"）と静的アセット（"/static/*"）を配信するハンドラーを返す。
// シェルは"#/<path>"の変化ごとに"/pages/<path>"から画面の断片を取得して差し替える。
func ShellHandler() http.Handler {
	assets := http.FileServerFS(staticFS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFileFS(w, r, staticFS, "static/index.html")
			return
		}
		assets.ServeHTTP(w, r)
	})
}
