// Package corpus は解析対象の文学テキストの読み込みとチャンク分割を提供します
package corpus

import (
	"fmt"
	"os"
)

// Document は読み込まれた1つのテキスト作品を表す。
// IDにはソースファイルのパスをそのまま用い、読み込み後は不変として扱う。
type Document struct {
	ID   string
	Text string
}

// LoadDocument はUTF-8テキストファイルを読み込んでDocumentを作成します
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	return &Document{
		ID:   path,
		Text: string(data),
	}, nil
}
