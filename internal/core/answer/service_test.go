package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/storymap/internal/core/corpus"
)

type stubQueryEmbedder struct {
	vector []float32
	err    error
}

func (e *stubQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

type stubSearcher struct {
	chunks []corpus.Chunk
	lastK  int
}

func (s *stubSearcher) Search(queryVector []float32, k int) []corpus.Chunk {
	s.lastK = k
	if k < len(s.chunks) {
		return s.chunks[:k]
	}
	return s.chunks
}

// stubLLM はプロンプトから決定的な応答を生成するスタブ
type stubLLM struct {
	mu       sync.Mutex
	prompts  []string
	failOn   string // このサブ文字列を含むプロンプトで失敗する
	delay    time.Duration
	maxInUse int
	inUse    int
}

func (l *stubLLM) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.inUse++
	if l.inUse > l.maxInUse {
		l.maxInUse = l.inUse
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inUse--
		l.mu.Unlock()
	}()

	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if l.failOn != "" && strings.Contains(prompt, l.failOn) {
		return "", errors.New("llm unavailable")
	}

	return fmt.Sprintf("answer(%d)", len(prompt)), nil
}

func testChunks(n int) []corpus.Chunk {
	chunks := make([]corpus.Chunk, n)
	for i := range chunks {
		chunks[i] = corpus.Chunk{Ordinal: i, Text: fmt.Sprintf("チャンク%d の本文", i)}
	}
	return chunks
}

func newTestService(embedder QueryEmbedder, searcher Searcher, llm CompletionClient, config Config) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(embedder, searcher, llm, config, WithAnswerLogger(logger))
}

func TestAnswerMapReduce(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(3)}
	llm := &stubLLM{}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{SearchK: 3})

	result, err := svc.Answer(context.Background(), "登場人物は誰ですか")
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	// チャンクごとに1回 + 統合で1回
	assert.Len(t, llm.prompts, 4)
	assert.Equal(t, 3, searcher.lastK)

	// 最後のプロンプトは統合用で、全部分回答を含む
	reducePrompt := llm.prompts[len(llm.prompts)-1]
	assert.Contains(t, reducePrompt, "部分回答 1")
	assert.Contains(t, reducePrompt, "部分回答 3")
}

func TestAnswerSingleChunkSkipsReduction(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(1)}
	llm := &stubLLM{}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{SearchK: 3})

	result, err := svc.Answer(context.Background(), "質問")
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	// 統合呼び出しは発生しない
	assert.Len(t, llm.prompts, 1)
}

func TestAnswerIsIdempotent(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(3)}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, &stubLLM{}, Config{SearchK: 3})

	first, err := svc.Answer(context.Background(), "テーマは何ですか")
	require.NoError(t, err)

	second, err := svc.Answer(context.Background(), "テーマは何ですか")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnswerFailsOnEmbedError(t *testing.T) {
	cause := errors.New("embedding provider failed")
	svc := newTestService(&stubQueryEmbedder{err: cause}, &stubSearcher{}, &stubLLM{}, Config{})

	_, err := svc.Answer(context.Background(), "質問")
	require.ErrorIs(t, err, cause)
}

func TestAnswerFailsWhenOneChunkFails(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(3)}
	// チャンク1の部分回答だけが失敗する
	llm := &stubLLM{failOn: "チャンク1"}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{SearchK: 3})

	_, err := svc.Answer(context.Background(), "質問")
	require.ErrorIs(t, err, ErrCompletionProvider)
}

func TestAnswerFailsWhenReductionFails(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(2)}
	llm := &stubLLM{failOn: "統合された回答"}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{SearchK: 2})

	_, err := svc.Answer(context.Background(), "質問")
	require.ErrorIs(t, err, ErrCompletionProvider)
}

func TestAnswerRespectsConcurrencyCap(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(6)}
	llm := &stubLLM{delay: 20 * time.Millisecond}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{
		SearchK:        6,
		MaxConcurrency: 2,
	})

	_, err := svc.Answer(context.Background(), "質問")
	require.NoError(t, err)
	assert.LessOrEqual(t, llm.maxInUse, 2)
}

func TestAnswerSurfacesDeadline(t *testing.T) {
	searcher := &stubSearcher{chunks: testChunks(3)}
	llm := &stubLLM{delay: time.Second}
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, searcher, llm, Config{
		SearchK: 3,
		Timeout: 30 * time.Millisecond,
	})

	start := time.Now()
	_, err := svc.Answer(context.Background(), "質問")
	require.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond) // ハングせずに打ち切られる
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(&stubQueryEmbedder{vector: []float32{1}}, &stubSearcher{}, &stubLLM{}, Config{})

	_, err := svc.Answer(context.Background(), "")
	require.Error(t, err)
}
