package navigation

import (
	"context"
	"sync"
)

// Location は現在のロケーションフラグメントの読み書き。
type Location interface {
	// Path は現在のパスを返す（"#"を除いたもの。空なら"/"）。
	Path() string
	// Replace は現在のパスを置き換える。ナビゲーションイベントは発火しない。
	Replace(path string)
}

// Run はナビゲーションイベントと認証状態の変化を受けてサイクルを起動し続ける。
// 最初のサイクルはgateが最初の通知を受け取るまで開始しない。
// 各サイクルは別goroutineで実行され、後から開始されたサイクルが優先される。
// リダイレクトは最新のサイクルから返された場合のみlocationに反映し、続けて新しいサイクルを起動する。
// ctxがキャンセルされるかnavigationsがcloseされると、実行中のサイクルの終了を待って返る。
func (r *Router) Run(ctx context.Context, location Location, navigations <-chan struct{}, gate *SessionGate) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	authChanged := make(chan struct{}, 1)
	unsubscribe := gate.Subscribe(func(*User) {
		select {
		case authChanged <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	select {
	case <-gate.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	// 最初の通知による変更は下のdispatchで処理する
	select {
	case <-authChanged:
	default:
	}

	redirects := make(chan Result, 1)
	dispatch := func() {
		path := location.Path()
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Navigate(ctx, path)
			if res.Outcome != OutcomeRedirect {
				return
			}
			select {
			case redirects <- res:
			case <-ctx.Done():
			}
		}()
	}

	dispatch()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-navigations:
			if !ok {
				return nil
			}
			dispatch()
		case <-authChanged:
			dispatch()
		case res := <-redirects:
			if res.Generation != r.CurrentGeneration() {
				continue
			}
			location.Replace(res.Redirect)
			dispatch()
		}
	}
}
