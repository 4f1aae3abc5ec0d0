package corpus

import (
	"errors"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// ErrInvalidConfiguration はチャンク分割パラメータが不正な場合のエラー
var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

// Chunk はDocumentの連続した部分文字列で、検索の最小単位となる。
// Ordinalは分割順の連番で、インデックス構築後の同点順位の決定にも使われる。
type Chunk struct {
	Ordinal int
	Text    string
	Tokens  int
}

// Chunker はテキストを固定長・オーバーラップ付きのチャンクに分割します
type Chunker struct {
	chunkSize int
	overlap   int
	maxTokens int
	encoder   *tiktoken.Tiktoken
}

// NewChunker は新しいChunkerを作成します。
// overlap >= chunkSize は分割が前進しなくなるため、chunkSize <= 0 とあわせて構成エラーとする。
func NewChunker(chunkSize, overlap, maxTokens int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size, got overlap=%d chunk size=%d", ErrInvalidConfiguration, overlap, chunkSize)
	}

	// cl100k_baseエンコーダを使用（text-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		maxTokens: maxTokens,
		encoder:   encoder,
	}, nil
}

// Split はDocumentをチャンク列に分割します。
// 2番目以降の各チャンクは直前のチャンクの開始から chunkSize-overlap 文字後ろで始まり、
// 最後のチャンクのみ chunkSize より短くなることがある。同じ入力は常に同じ境界を返す。
func (c *Chunker) Split(doc *Document) ([]Chunk, error) {
	runes := []rune(doc.Text)

	var chunks []Chunk
	stride := c.chunkSize - c.overlap

	for start := 0; start < len(runes); start += stride {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		tokens := c.countTokens(text)

		// Embeddingプロバイダのトークン上限を超えないようトリミングする
		if c.maxTokens > 0 && tokens > c.maxTokens {
			text = c.trimToTokenLimit(text, c.maxTokens)
			tokens = c.maxTokens
		}

		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Text:    text,
			Tokens:  tokens,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// countTokens はテキストのトークン数をカウントします
func (c *Chunker) countTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// trimToTokenLimit はテキストを指定されたトークン数に収まるようトリミングします
func (c *Chunker) trimToTokenLimit(text string, maxTokens int) string {
	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoder.Decode(tokens[:maxTokens])
}
