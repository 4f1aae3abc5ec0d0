package answer

import (
	"fmt"
	"strings"
)

// BuildChunkPrompt は1つのチャンクを根拠とした部分回答生成用のプロンプトを構築する
func BuildChunkPrompt(chunkText, query string) string {
	var sb strings.Builder

	sb.WriteString("あなたは文学作品の分析を支援するアシスタントです。\n")
	sb.WriteString("以下の抜粋のみを根拠として、質問に答えてください。\n")
	sb.WriteString("抜粋に答えが含まれていない場合は、推測せずにその旨を述べてください。\n\n")

	sb.WriteString("## 作品の抜粋\n")
	sb.WriteString(chunkText)
	sb.WriteString("\n\n")

	sb.WriteString("## 質問\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## 回答\n")

	return sb.String()
}

// BuildReducePrompt は複数の部分回答を1つに統合するためのプロンプトを構築する。
// 部分回答は検索順位の順に並べて渡す。
func BuildReducePrompt(query string, partials []string) string {
	var sb strings.Builder

	sb.WriteString("あなたは文学作品の分析を支援するアシスタントです。\n")
	sb.WriteString("同じ質問に対して作品の異なる抜粋から得られた複数の部分回答があります。\n")
	sb.WriteString("重複を取り除き、矛盾があれば整理して、1つの一貫した回答に統合してください。\n")
	sb.WriteString("回答の形式（JSON等）が指定されている場合はその形式を維持してください。\n\n")

	sb.WriteString("## 質問\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## 部分回答\n")
	for i, partial := range partials {
		sb.WriteString(fmt.Sprintf("### [部分回答 %d]\n", i+1))
		sb.WriteString(partial)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## 統合された回答\n")

	return sb.String()
}
