// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は管理者が入力する組織名、分類名、品目名と品目説明をサニタイズし、
// 画面表示時のXSSを防ぐ。bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は入力文字列のサニタイズ機能を提供する。
// ポリシーはスレッドセーフで、複数のgoroutineから共有できる。
type TextSanitizer struct {
	plain *bluemonday.Policy
	rich  *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
//   - 名前: すべてのタグを除去したプレーンテキスト
//   - 説明: p, br, strong, em, ul, ol, li のみ許可
func NewTextSanitizer() *TextSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "strong", "em", "ul", "ol", "li")

	return &TextSanitizer{
		plain: bluemonday.StrictPolicy(),
		rich:  rich,
	}
}

// Name はタグを除去し前後の空白を取り除いたプレーンテキストを返す。
// 文字参照はデコードされ、"Fish & Chips" はそのまま保存される。
func (s *TextSanitizer) Name(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(raw)))
}

// Description は許可タグのみを残したHTMLを返す。
func (s *TextSanitizer) Description(raw string) string {
	return strings.TrimSpace(s.rich.Sanitize(raw))
}
