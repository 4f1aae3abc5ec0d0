package index

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSnapshotNotFound は対象DocumentのSnapshotが保存されていない場合のエラー
var ErrSnapshotNotFound = errors.New("index snapshot not found")

// Snapshot は永続化用のインデックス一式。
// 1回のBuildの結果をそのまま写し取ったもので、Entry列はチャンク順を保持する。
type Snapshot struct {
	ID         uuid.UUID
	DocumentID string
	Dimension  int
	Entries    []Entry
}

// Store はインデックスの永続化境界インターフェース。
// プロセスを再起動してもEmbeddingの再生成を省略できるようにするためのもので、
// クエリ時の検索はあくまでメモリ上のIndexが担う。
type Store interface {
	// Save はSnapshotを保存する。同じDocumentの古いSnapshotは置き換えられる。
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load は指定Documentの最新のSnapshotを読み込む。
	// 保存されていない場合はErrSnapshotNotFoundを返す。
	Load(ctx context.Context, documentID string) (*Snapshot, error)
}
