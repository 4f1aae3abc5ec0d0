// Package container はアプリケーションの依存関係の組み立てを担う。
package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/storymap/internal/core/agent"
	"github.com/jinford/storymap/internal/core/answer"
	"github.com/jinford/storymap/internal/core/corpus"
	"github.com/jinford/storymap/internal/core/embedding"
	"github.com/jinford/storymap/internal/core/index"
	"github.com/jinford/storymap/internal/infra/geocoder"
	"github.com/jinford/storymap/internal/infra/openai"
	"github.com/jinford/storymap/internal/infra/postgres"
	"github.com/jinford/storymap/pkg/config"
	"github.com/jinford/storymap/pkg/db"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	Config   *config.Config
	Chunker  *corpus.Chunker
	Embedder *embedding.BatchEmbedder
	LLM      answer.CompletionClient
	Geocoder agent.Geocoder

	logger   *slog.Logger
	database *db.DB
}

type containerOptions struct {
	logger    *slog.Logger
	provider  embedding.Provider
	llmClient answer.CompletionClient
	geocoder  agent.Geocoder
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerProvider はカスタム Embedding プロバイダを注入する
func WithContainerProvider(provider embedding.Provider) ContainerOption {
	return func(opts *containerOptions) {
		opts.provider = provider
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client answer.CompletionClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerGeocoder は Geocoder を差し替える
func WithContainerGeocoder(g agent.Geocoder) ContainerOption {
	return func(opts *containerOptions) {
		opts.geocoder = g
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Chunker
	chunker, err := corpus.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	// Embedding Provider (OpenAI)
	provider := options.provider
	if provider == nil {
		provider = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	batchEmbedder := embedding.NewBatchEmbedder(
		provider,
		embedding.Config{
			BatchSize:         cfg.Embedding.BatchSize,
			DelayBetweenBatch: cfg.Embedding.DelayBetweenBatch,
			Retry: embedding.RetryPolicy{
				Attempts:   uint(cfg.Embedding.RetryAttempts),
				Multiplier: cfg.Embedding.RetryMultiplier,
				MinWait:    cfg.Embedding.RetryMinWait,
				MaxWait:    cfg.Embedding.RetryMaxWait,
			},
		},
		embedding.WithEmbedderLogger(options.logger),
	)

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		openaiLLMClient, err := openai.NewCompletionClient(
			cfg.OpenAI.APIKey,
			openai.WithLLMModel(cfg.OpenAI.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		llmClient = openaiLLMClient
	}

	// Geocoder (Nominatim)
	geo := options.geocoder
	if geo == nil {
		geo = geocoder.NewNominatimClient(
			geocoder.WithBaseURL(cfg.Geocoder.BaseURL),
			geocoder.WithAPIKey(cfg.Geocoder.APIKey),
			geocoder.WithTimeout(cfg.Geocoder.Timeout),
			geocoder.WithCacheTTL(cfg.Geocoder.CacheTTL),
		)
	}

	return &ServiceContainer{
		Config:   cfg,
		Chunker:  chunker,
		Embedder: batchEmbedder,
		LLM:      llmClient,
		Geocoder: geo,
		logger:   options.logger,
	}, nil
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close は保持しているリソースを解放する
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
		c.database = nil
	}
}

// SnapshotStore はインデックス永続化用のリポジトリを返す。
// 初回呼び出しでデータベースに接続し、スキーマを作成する。
func (c *ServiceContainer) SnapshotStore(ctx context.Context) (index.Store, error) {
	if c.database == nil {
		database, err := db.New(ctx, db.ConnectionParams{
			Host:     c.Config.Database.Host,
			Port:     c.Config.Database.Port,
			User:     c.Config.Database.User,
			Password: c.Config.Database.Password,
			DBName:   c.Config.Database.DBName,
			SSLMode:  c.Config.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = database
	}

	repo := postgres.NewSnapshotRepository(c.database)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("スキーマ作成に失敗しました: %w", err)
	}
	return repo, nil
}

// BuildIndex は設定された文書を読み込み、チャンク分割してインデックスを構築する。
func (c *ServiceContainer) BuildIndex(ctx context.Context) (*index.Index, error) {
	doc, err := corpus.LoadDocument(c.Config.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("文書の読み込みに失敗しました: %w", err)
	}

	chunks, err := c.Chunker.Split(doc)
	if err != nil {
		return nil, fmt.Errorf("チャンク分割に失敗しました: %w", err)
	}

	ix, err := index.Build(ctx, doc.ID, chunks, c.Embedder, c.logger)
	if err != nil {
		return nil, fmt.Errorf("インデックス構築に失敗しました: %w", err)
	}
	return ix, nil
}

// AnswerService は構築済みインデックスに対する質問応答エンジンを返す。
func (c *ServiceContainer) AnswerService(ix *index.Index) *answer.Service {
	return answer.NewService(
		c.Embedder,
		ix,
		c.LLM,
		answer.Config{
			SearchK:        c.Config.Answer.SearchK,
			MaxConcurrency: c.Config.Answer.MaxConcurrency,
			Timeout:        c.Config.Answer.Timeout,
		},
		answer.WithAnswerLogger(c.logger),
	)
}

// Agents は質問応答エンジンの上に各エージェントを組み立てる。
type Agents struct {
	Relation  *agent.RelationAgent
	Timeline  *agent.TimelineAgent
	Geography *agent.GeographyAgent
	Diagram   *agent.DiagramAgent
}

// NewAgents はエンジンを共有する4つのエージェントを作成する。
func (c *ServiceContainer) NewAgents(engine agent.Engine) *Agents {
	return &Agents{
		Relation:  agent.NewRelationAgent(engine, agent.WithRelationLogger(c.logger)),
		Timeline:  agent.NewTimelineAgent(engine, agent.WithTimelineLogger(c.logger)),
		Geography: agent.NewGeographyAgent(engine, c.Geocoder, agent.WithGeographyLogger(c.logger)),
		Diagram:   agent.NewDiagramAgent(engine, c.Config.DiagramExamplesPath, agent.WithDiagramLogger(c.logger)),
	}
}
