// Package embedding はレート制限付きのバッチEmbedding生成を提供します
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrEmbeddingProvider はリトライを使い切った、または回復不能なEmbedding生成失敗のエラー
var ErrEmbeddingProvider = errors.New("embedding provider failed")

// Provider は外部Embeddingサービスの境界インターフェース。
// テキストのバッチを受け取り、同じ長さ・同じ順序のベクトル列を返す。
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RetryPolicy はプロバイダ呼び出しの再試行とバックオフ曲線を表す。
// 暗黙のデコレータではなく明示的な設定オブジェクトとして渡すことで、
// 試行回数とバックオフ曲線を独立にテストできるようにしている。
type RetryPolicy struct {
	Attempts   uint          // 総試行回数（初回を含む）
	Multiplier time.Duration // 指数バックオフの基底時間
	MinWait    time.Duration // 待機時間の下限
	MaxWait    time.Duration // 待機時間の上限
}

// DefaultRetryPolicy はデフォルトの再試行ポリシーを返す
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		Multiplier: time.Second,
		MinWait:    2 * time.Second,
		MaxWait:    10 * time.Second,
	}
}

// Delay はn回目（0始まり）の失敗後の待機時間を返す。
// 待機時間は min(MaxWait, Multiplier * 2^n) を MinWait で下から抑えた値になる。
func (p RetryPolicy) Delay(n uint, _ error, _ *retry.Config) time.Duration {
	wait := p.Multiplier << n
	if wait < p.MinWait {
		wait = p.MinWait
	}
	if wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// Config はBatchEmbedderのスループット制御設定
type Config struct {
	BatchSize         int           // 1バッチあたりの最大テキスト数
	DelayBetweenBatch time.Duration // 成功したバッチの後に挟む待機時間
	Retry             RetryPolicy
}

// BatchEmbedder はプロバイダのレート制限を守りながらテキスト列をベクトル列に変換する。
// バッチ間の待機とバックオフはスループット制御のための意図的なブロッキングであり、
// 1回のEmbedTexts呼び出しの中で複数バッチを並列化してはならない。
type BatchEmbedder struct {
	provider Provider
	config   Config
	logger   *slog.Logger

	// 複数ゴルーチンから同時に呼ばれてもレート制限ウィンドウが保たれるよう、
	// 外向きの呼び出し全体を直列化する
	mu sync.Mutex
}

// BatchEmbedderOption はBatchEmbedderのオプション設定
type BatchEmbedderOption func(*BatchEmbedder)

// WithEmbedderLogger はBatchEmbedderにロガーを設定する
func WithEmbedderLogger(logger *slog.Logger) BatchEmbedderOption {
	return func(e *BatchEmbedder) {
		e.logger = logger
	}
}

// NewBatchEmbedder は新しいBatchEmbedderを作成する
func NewBatchEmbedder(provider Provider, config Config, opts ...BatchEmbedderOption) *BatchEmbedder {
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}

	// 未指定のフィールドのみ既定値で補い、呼び出し側の設定は保持する
	defaults := DefaultRetryPolicy()
	if config.Retry.Attempts == 0 {
		config.Retry.Attempts = defaults.Attempts
	}
	if config.Retry.Multiplier <= 0 {
		config.Retry.Multiplier = defaults.Multiplier
	}
	if config.Retry.MinWait <= 0 {
		config.Retry.MinWait = defaults.MinWait
	}
	if config.Retry.MaxWait <= 0 {
		config.Retry.MaxWait = defaults.MaxWait
	}

	e := &BatchEmbedder{
		provider: provider,
		config:   config,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// EmbedTexts はテキスト列をベクトル列に変換する。結果は入力と同じ順序で、
// result[i] は texts[i] に対応する。いずれかのバッチがリトライを使い切って
// 失敗した場合は部分結果を返さず、呼び出し全体がErrEmbeddingProviderで失敗する。
func (e *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	totalBatches := (len(texts) + e.config.BatchSize - 1) / e.config.BatchSize
	e.logger.Info("embedding texts", "count", len(texts), "batches", totalBatches)

	result := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.config.BatchSize {
		end := i + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		batchNum := i/e.config.BatchSize + 1

		e.logger.Debug("processing batch", "batch", batchNum, "total", totalBatches, "size", len(batch))

		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d of %d: %w", ErrEmbeddingProvider, batchNum, totalBatches, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: batch %d of %d: provider returned %d vectors for %d texts", ErrEmbeddingProvider, batchNum, totalBatches, len(vectors), len(batch))
		}

		result = append(result, vectors...)

		// 最後のバッチ以外は、リクエストレート上限を超えないよう一定時間待つ
		if end < len(texts) && e.config.DelayBetweenBatch > 0 {
			select {
			case <-time.After(e.config.DelayBetweenBatch):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrEmbeddingProvider, ctx.Err())
			}
		}
	}

	e.logger.Info("embedding completed", "count", len(result))
	return result, nil
}

// EmbedQuery は単一テキストのEmbeddingを生成する
func (e *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding generated", ErrEmbeddingProvider)
	}
	return vectors[0], nil
}

// embedBatch は1バッチをリトライポリシーに従ってEmbeddingする
func (e *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32

	err := retry.Do(
		func() error {
			v, err := e.provider.EmbedBatch(ctx, batch)
			if err != nil {
				return err
			}
			vectors = v
			return nil
		},
		retry.Attempts(e.config.Retry.Attempts),
		retry.DelayType(e.config.Retry.Delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("embedding batch failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	return vectors, nil
}
