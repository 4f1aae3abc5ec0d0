// Package agent は検索合成エンジンの回答を構造化データに変換するエージェント群を提供する。
// 各エージェントはドメイン固有のクエリを1回送信し、回答からJSON配列を抽出して型付きモデルに変換する。
package agent

import (
	"context"
	"errors"
)

// ErrAgent はエージェントのデータ取得・変換に失敗した場合のエラー
var ErrAgent = errors.New("agent error")

// Engine は質問文字列を受け取り最終回答文字列を返す検索合成エンジン
type Engine interface {
	Answer(ctx context.Context, query string) (string, error)
}
