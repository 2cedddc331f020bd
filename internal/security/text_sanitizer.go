// Package security はユーザー入力テキストのサニタイズ機能を提供する。
//
// 自己紹介文やチェックイン本文はプレーンテキストとして保存し、
// HTMLタグはすべて除去する。bluemondayのStrictPolicyを使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したテキストを返す。
// script・styleは要素の中身ごと除去される。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
