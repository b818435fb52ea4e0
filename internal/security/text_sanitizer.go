// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述（組織の説明、レビュー用のカスタムプロンプト）から
// HTMLを取り除き、プレーンテキストとして保存できる形にする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize はすべてのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, styleの中身は残さない。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// タグを一切許可しないbluemondayのStrictPolicyを使う。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はエンティティの多重エスケープを解く回数の上限。
const maxSanitizePasses = 16

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyは & や < をエスケープするため元の文字へ戻すが、戻した結果が新たなタグになりうるので、
// 出力が変わらなくなるまでポリシーの適用とアンエスケープを繰り返す。
// 上限までに収束しない場合はエスケープされたままの出力を返す。
func (s *textSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	current := text
	for range maxSanitizePasses {
		escaped := s.policy.Sanitize(current)
		next := strings.TrimSpace(html.UnescapeString(escaped))
		if next == current {
			return next
		}
		current = next
	}
	return strings.TrimSpace(s.policy.Sanitize(current))
}
