// Package jsonx はLLM応答のような自由テキストからJSON断片を取り出すユーティリティを提供します。
package jsonx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput は入力文字列が空の場合のエラー
	ErrEmptyInput = errors.New("input string is empty")

	// ErrNoBrackets は '[' または ']' が見つからない場合のエラー
	ErrNoBrackets = errors.New("no JSON array brackets found")

	// ErrMalformedRange は最初の '[' が最後の ']' 以降に現れる場合のエラー
	ErrMalformedRange = errors.New("malformed JSON array range")
)

// ExtractArray は自由テキストから最初の '[' と最後の ']' に挟まれた部分文字列を取り出す。
// LLMの応答はJSON配列の前後に説明文を含むことが多いため、その外側を削ぎ落とすための
// 構文的ヒューリスティックであり、括弧の対応やJSONとしての妥当性は検証しない。
// 呼び出し側は取り出した文字列を必ず json.Unmarshal にかけ、その失敗を別途処理すること。
func ExtractArray(s string) (string, error) {
	if s == "" {
		return "", ErrEmptyInput
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")

	if start == -1 || end == -1 {
		return "", fmt.Errorf("%w: text length %d", ErrNoBrackets, len(s))
	}

	if start >= end {
		return "", fmt.Errorf("%w: first '[' at %d, last ']' at %d", ErrMalformedRange, start, end)
	}

	return s[start : end+1], nil
}
