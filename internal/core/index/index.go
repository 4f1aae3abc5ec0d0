// Package index はチャンクとEmbeddingの対を保持し、最近傍検索を提供します
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/jinford/storymap/internal/core/corpus"
)

// ErrIndexBuild はインデックス構築に失敗した場合のエラー
var ErrIndexBuild = errors.New("index build failed")

// Embedder はテキスト列のEmbedding生成インターフェース
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Entry は1つのチャンクとそのEmbeddingの対。
// Entryはインデックスが専有し、再構築または破棄まで不変に保たれる。
type Entry struct {
	Chunk  corpus.Chunk
	Vector []float32
}

// Index は構築後は不変のベクトルインデックス。
// 変更手段は再構築のみであり、構築後はロックなしで並行Searchしてよい。
type Index struct {
	documentID string
	dimension  int
	entries    []Entry
}

// Build はチャンク列からインデックスを構築する。
// 全チャンクのテキストをチャンク順にEmbeddingし、Entry列として保持する。
// チャンクが空の場合、Embedding生成が失敗した場合はErrIndexBuildで失敗する。
func Build(ctx context.Context, documentID string, chunks []corpus.Chunk, embedder Embedder, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", ErrIndexBuild)
	}

	logger.Info("building index", "documentID", documentID, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrIndexBuild, len(vectors), len(chunks))
	}

	// 1つのインデックスの中で次元数は一様でなければならない
	dimension := len(vectors[0])
	entries := make([]Entry, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dimension {
			return nil, fmt.Errorf("%w: vector dimension mismatch at chunk %d: got %d, want %d", ErrIndexBuild, i, len(vectors[i]), dimension)
		}
		entries[i] = Entry{Chunk: chunk, Vector: vectors[i]}
	}

	logger.Info("index built", "documentID", documentID, "entries", len(entries), "dimension", dimension)

	return &Index{
		documentID: documentID,
		dimension:  dimension,
		entries:    entries,
	}, nil
}

// Search はクエリベクトルにL2距離で近い順に最大k件のチャンクを返す。
// 距離が同じ場合は挿入順（先に登録された方）が優先される。
// kが格納件数を超える場合は全件をランキングして返す。
func (ix *Index) Search(queryVector []float32, k int) []corpus.Chunk {
	if k <= 0 || len(ix.entries) == 0 {
		return nil
	}

	type scored struct {
		ordinal  int
		distance float64
	}

	ranked := make([]scored, len(ix.entries))
	for i, entry := range ix.entries {
		ranked[i] = scored{ordinal: i, distance: l2Distance(queryVector, entry.Vector)}
	}

	// 安定ソートにより距離が等しい場合は挿入順が保たれる
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].distance < ranked[b].distance
	})

	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]corpus.Chunk, k)
	for i := 0; i < k; i++ {
		results[i] = ix.entries[ranked[i].ordinal].Chunk
	}
	return results
}

// DocumentID はインデックス対象のDocument IDを返す
func (ix *Index) DocumentID() string {
	return ix.documentID
}

// Dimension はEmbeddingの次元数を返す
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Len は格納されているEntry数を返す
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Snapshot は永続化用にインデックスの内容を取り出す
func (ix *Index) Snapshot() *Snapshot {
	return &Snapshot{
		ID:         uuid.New(),
		DocumentID: ix.documentID,
		Dimension:  ix.dimension,
		Entries:    ix.entries,
	}
}

// FromSnapshot は永続化されたSnapshotからインデックスを復元する
func FromSnapshot(s *Snapshot) (*Index, error) {
	if len(s.Entries) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no entries", ErrIndexBuild)
	}
	return &Index{
		documentID: s.DocumentID,
		dimension:  s.Dimension,
		entries:    s.Entries,
	}, nil
}

// l2Distance は2つのベクトル間のユークリッド距離を返す。
// 次元が一致しない場合は比較不能として無限大を返す。
func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
