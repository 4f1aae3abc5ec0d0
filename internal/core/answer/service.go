// Package answer はベクトル検索と補完サービスを組み合わせた回答生成を提供します
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jinford/storymap/internal/core/corpus"
)

var (
	// ErrCompletionProvider は補完サービスの呼び出しに失敗した場合のエラー
	ErrCompletionProvider = errors.New("completion provider failed")

	// ErrDeadlineExceeded は回答生成全体のタイムアウトを超過した場合のエラー
	ErrDeadlineExceeded = errors.New("answer deadline exceeded")
)

// CompletionClient はLLM通信インターフェース
type CompletionClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// QueryEmbedder はクエリのEmbedding生成インターフェース
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher はベクトルインデックスの検索インターフェース
type Searcher interface {
	Search(queryVector []float32, k int) []corpus.Chunk
}

// Config は回答生成の設定
type Config struct {
	SearchK        int           // 検索で取得するチャンク数
	MaxConcurrency int           // チャンクごとの補完呼び出しの並列度上限
	Timeout        time.Duration // 1クエリ全体のタイムアウト（0で無効）
}

// Service は検索拡張つきの質問応答エンジン。
// 永続状態を持たないため、インデックスが固定である限り
// 1度構築して無関係なクエリ間で使い回してよい。
type Service struct {
	embedder QueryEmbedder
	searcher Searcher
	llm      CompletionClient
	config   Config
	logger   *slog.Logger
}

// ServiceOption はServiceのオプション設定
type ServiceOption func(*Service)

// WithAnswerLogger はServiceにロガーを設定する
func WithAnswerLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(embedder QueryEmbedder, searcher Searcher, llm CompletionClient, config Config, opts ...ServiceOption) *Service {
	if config.SearchK <= 0 {
		config.SearchK = 3
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 3
	}

	svc := &Service{
		embedder: embedder,
		searcher: searcher,
		llm:      llm,
		config:   config,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Answer はクエリに対する回答を生成する。
// クエリをEmbeddingし、近いチャンクを検索し、チャンクごとに部分回答を生成した後、
// それらを1つの回答に統合する。いずれかの段階が失敗した場合は呼び出し全体が失敗し、
// 部分的に有効な回答を返すことはない。
func (s *Service) Answer(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	s.logger.Info("answering query", "queryLength", len(query), "searchK", s.config.SearchK)

	// 1. クエリをEmbeddingに変換（リトライはBatchEmbedder内部で済んでおり、ここでは行わない）
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", s.wrapDeadline(fmt.Errorf("failed to embed query: %w", err))
	}

	// 2. 近傍チャンクを検索
	chunks := s.searcher.Search(queryVector, s.config.SearchK)
	if len(chunks) == 0 {
		return "", fmt.Errorf("no chunks retrieved from index")
	}

	s.logger.Info("chunks retrieved", "count", len(chunks))

	// 3. チャンクごとに部分回答を生成（統合が可換なので順序に依存せず並列化できる）
	partials, err := s.generatePartials(ctx, query, chunks)
	if err != nil {
		return "", err
	}

	// 4. 部分回答を1つの回答に統合。1件のみの場合は統合呼び出しを省略する
	if len(partials) == 1 {
		s.logger.Info("single chunk retrieved, skipping reduction")
		return partials[0], nil
	}

	merged, err := s.llm.GenerateCompletion(ctx, BuildReducePrompt(query, partials))
	if err != nil {
		return "", s.wrapDeadline(fmt.Errorf("%w: reduction call: %w", ErrCompletionProvider, err))
	}

	s.logger.Info("answer generated", "answerLength", len(merged))
	return merged, nil
}

// generatePartials は取得した各チャンクについて部分回答を並列に生成する。
// 並列度はMaxConcurrencyで抑え、全チャンクの完了を待ってから検索順で結果を返す。
// 1チャンクでも失敗した場合、その寄与を黙って落とすのではなく呼び出し全体を失敗させる。
func (s *Service) generatePartials(ctx context.Context, query string, chunks []corpus.Chunk) ([]string, error) {
	partials := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	semaphore := make(chan struct{}, s.config.MaxConcurrency)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)

		go func(idx int, c corpus.Chunk) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			partial, err := s.llm.GenerateCompletion(ctx, BuildChunkPrompt(c.Text, query))
			if err != nil {
				errs[idx] = err
				return
			}
			partials[idx] = partial
		}(i, chunk)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, s.wrapDeadline(fmt.Errorf("%w: chunk %d: %w", ErrCompletionProvider, chunks[i].Ordinal, err))
		}
	}

	return partials, nil
}

// wrapDeadline はタイムアウト起因の失敗をErrDeadlineExceededとして表面化する
func (s *Service) wrapDeadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	}
	return err
}
