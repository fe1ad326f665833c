package navigation

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// PageModule は画面を描画するモジュールの契約。
// Renderはナビゲーション状態を変更してはならない（リダイレクトしない）。
type PageModule interface {
	Render(ctx context.Context, params Params) (template.HTML, error)
}

// Initializer は描画結果の配置後に初期化処理を行うページモジュールが実装する。
type Initializer interface {
	Init(ctx context.Context, params Params) error
}

// Registry はPageIDからページモジュールへの固定の対応表。
type Registry map[PageID]PageModule

// Validate はtableの全ルートに対応するページモジュールが登録されていることを確認する。
func (reg Registry) Validate(table *RouteTable) error {
	var missing []string
	seen := make(map[PageID]bool)
	for _, r := range table.Routes() {
		if seen[r.Page] {
			continue
		}
		seen[r.Page] = true
		if reg[r.Page] == nil {
			missing = append(missing, string(r.Page))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("page modules are not registered: %s", strings.Join(missing, ", "))
	}
	return nil
}

// PageFunc は関数をPageModuleとして扱うアダプタ。
type PageFunc func(ctx context.Context, params Params) (template.HTML, error)

// Render はPageModuleを実装する。
func (f PageFunc) Render(ctx context.Context, params Params) (template.HTML, error) {
	return f(ctx, params)
}

// View は画面のコンテンツ領域とローディング表示。
type View interface {
	ShowLoader()
	HideLoader()
	// Clear はコンテンツ領域を空にする。
	Clear()
	// Mount は描画結果をコンテンツ領域に配置する。
	Mount(el template.HTML)
	ShowNotFound()
	ShowError()
}
