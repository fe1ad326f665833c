package blog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultExcerptLength は抜粋の既定の最大文字数。
const DefaultExcerptLength = 200

// skipTextElements はテキストを抜粋に含めない要素。
var skipTextElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"pre":      true,
	"code":     true,
	"figure":   true,
}

// blockElements は前後のテキストを空白で区切る要素。
// インライン要素では区切らない。
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "section": true, "article": true, "header": true, "footer": true,
	"table": true, "tr": true, "td": true, "th": true,
	"pre": true, "figure": true, "figcaption": true, "img": true,
}

// Excerpt はHTMLから本文テキストを抽出し、最大maxRunes文字の抜粋を返す。
// 連続する空白は1つにまとめ、切り詰めた場合は単語の区切りで切って末尾に"…"を付ける。
func Excerpt(rawHTML string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptLength
	}

	text := collapseSpaces(extractText(rawHTML))
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxRunes])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > maxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}

// extractText はトークナイザでテキストノードを連結する。
// ブロック要素の境界には空白を挟む。
func extractText(rawHTML string) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var b strings.Builder
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTextElements[tag] {
				skipDepth++
			}
			if blockElements[tag] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTextElements[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockElements[tag] {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
