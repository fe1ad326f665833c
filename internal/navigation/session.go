package navigation

import (
	"context"
	"sync"
)

// User はセッションに保持するログインユーザー。
type User struct {
	ID    string
	Email string
}

// SessionSource はナビゲーションサイクル開始時のセッションを提供する。
type SessionSource interface {
	// Snapshot は現在のユーザーのコピーを返す。未ログインの場合はnil。
	Snapshot() *User
}

// AuthProvider は認証状態の変化を通知する。
// OnChangeのコールバックは起動時に少なくとも1回（未ログインならnil）、
// 以後ログイン・ログアウトのたびに呼ばれる。
type AuthProvider interface {
	OnChange(fn func(*User))
}

// SessionGate は認証プロバイダからの通知を唯一の書き込み元とするセッション保持器。
// 読み出しは値のコピーを返すため、呼び出し側が保持しても後続の書き込みの影響を受けない。
type SessionGate struct {
	mu          sync.RWMutex
	user        *User
	ready       chan struct{}
	readyOnce   sync.Once
	nextID      int
	subscribers map[int]func(*User)
}

// NewSessionGate は最初の通知を待つ状態のSessionGateを生成する。
func NewSessionGate() *SessionGate {
	return &SessionGate{
		ready:       make(chan struct{}),
		subscribers: make(map[int]func(*User)),
	}
}

// Bind はproviderの通知をこのSessionGateに接続する。
func (g *SessionGate) Bind(provider AuthProvider) {
	provider.OnChange(g.Set)
}

// Set はセッションのユーザーを丸ごと置き換え、購読者に通知する。
// 認証プロバイダのコールバックからのみ呼ぶこと。
func (g *SessionGate) Set(u *User) {
	g.mu.Lock()
	g.user = copyUser(u)
	subs := make([]func(*User), 0, len(g.subscribers))
	for _, fn := range g.subscribers {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	g.readyOnce.Do(func() { close(g.ready) })

	for _, fn := range subs {
		fn(copyUser(u))
	}
}

// Snapshot は現在のユーザーのコピーを返す。未ログインまたは未通知の場合はnil。
func (g *SessionGate) Snapshot() *User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyUser(g.user)
}

// Ready は最初の通知を受け取るとcloseされるチャネルを返す。
func (g *SessionGate) Ready() <-chan struct{} {
	return g.ready
}

// Subscribe はセッション変更時に呼ばれるfnを登録し、登録解除関数を返す。
func (g *SessionGate) Subscribe(fn func(*User)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subscribers[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subscribers, id)
		g.mu.Unlock()
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// StaticSession は固定のユーザーを返すSessionSource。
// リクエスト単位で解決済みのセッションを渡す場合に使う。
type StaticSession struct {
	User *User
}

// Snapshot は保持しているユーザーのコピーを返す。
func (s StaticSession) Snapshot() *User {
	return copyUser(s.User)
}

type userContextKey struct{}

// ContextWithUser はサイクル開始時のセッションをcontextに格納する。
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext はサイクル開始時に取得したセッションのユーザーを返す。
// 未ログインの場合はnil。
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
