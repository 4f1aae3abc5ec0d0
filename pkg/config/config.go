package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// 解析対象のテキストファイルパス
	DocumentPath string

	// チャンク分割設定
	Chunking ChunkingConfig

	// Embedding生成設定
	Embedding EmbeddingConfig

	// 検索・回答生成設定
	Answer AnswerConfig

	// OpenAI API設定
	OpenAI OpenAIConfig

	// ジオコーディング設定
	Geocoder GeocoderConfig

	// Database設定（インデックス永続化用、任意）
	Database DatabaseConfig

	// ログ出力設定
	Logging LoggingConfig

	// 可視化データの出力先ディレクトリ
	OutputDir string

	// mermaidダイアグラムの例文ファイルパス
	DiagramExamplesPath string
}

// ChunkingConfig はチャンク分割の設定
type ChunkingConfig struct {
	ChunkSize    int // チャンクサイズ（文字数）
	ChunkOverlap int // 隣接チャンクとの重なり（文字数）
	MaxTokens    int // 1チャンクあたりのトークン上限（超過分はトリミング）
}

// EmbeddingConfig はEmbedding生成のスループット制御設定
type EmbeddingConfig struct {
	BatchSize         int           // 1バッチあたりの最大テキスト数
	DelayBetweenBatch time.Duration // バッチ間の待機時間
	RetryAttempts     int           // プロバイダ呼び出しの最大試行回数
	RetryMultiplier   time.Duration // 指数バックオフの基底時間
	RetryMinWait      time.Duration // バックオフ待機時間の下限
	RetryMaxWait      time.Duration // バックオフ待機時間の上限
}

// AnswerConfig は検索・回答生成の設定
type AnswerConfig struct {
	SearchK        int           // 検索で取得するチャンク数
	MaxConcurrency int           // チャンクごとの回答生成の並列度上限
	Timeout        time.Duration // 1クエリ全体のタイムアウト
}

// OpenAIConfig はOpenAI API設定（Embeddings + Completion）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
}

// GeocoderConfig はジオコーディングAPI設定
type GeocoderConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration // 地名→座標キャッシュの有効期間
	Timeout  time.Duration
}

// LoggingConfig はログ出力の設定
type LoggingConfig struct {
	Level  string // debug / info / warn / error
	Format string // json / text
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		DocumentPath: getEnv("STORYMAP_DOCUMENT_PATH", "data/source.txt"),
		Chunking: ChunkingConfig{
			ChunkSize:    getEnvAsInt("STORYMAP_CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("STORYMAP_CHUNK_OVERLAP", 100),
			MaxTokens:    getEnvAsInt("STORYMAP_CHUNK_MAX_TOKENS", 8000),
		},
		Embedding: EmbeddingConfig{
			BatchSize:         getEnvAsInt("STORYMAP_EMBEDDING_BATCH_SIZE", 5),
			DelayBetweenBatch: getEnvAsDuration("STORYMAP_EMBEDDING_BATCH_DELAY", 500*time.Millisecond),
			RetryAttempts:     getEnvAsInt("STORYMAP_EMBEDDING_RETRY_ATTEMPTS", 3),
			RetryMultiplier:   getEnvAsDuration("STORYMAP_EMBEDDING_RETRY_MULTIPLIER", time.Second),
			RetryMinWait:      getEnvAsDuration("STORYMAP_EMBEDDING_RETRY_MIN_WAIT", 2*time.Second),
			RetryMaxWait:      getEnvAsDuration("STORYMAP_EMBEDDING_RETRY_MAX_WAIT", 10*time.Second),
		},
		Answer: AnswerConfig{
			SearchK:        getEnvAsInt("STORYMAP_SEARCH_K", 3),
			MaxConcurrency: getEnvAsInt("STORYMAP_ANSWER_MAX_CONCURRENCY", 3),
			Timeout:        getEnvAsDuration("STORYMAP_ANSWER_TIMEOUT", 5*time.Minute),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:  getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			APIKey:   getEnv("GEOCODER_API_KEY", ""),
			CacheTTL: getEnvAsDuration("GEOCODER_CACHE_TTL", 24*time.Hour),
			Timeout:  getEnvAsDuration("GEOCODER_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "storymap"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "storymap"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("STORYMAP_LOG_LEVEL", "info"),
			Format: getEnv("STORYMAP_LOG_FORMAT", "json"),
		},
		OutputDir:           getEnv("STORYMAP_OUTPUT_DIR", "out"),
		DiagramExamplesPath: getEnv("STORYMAP_DIAGRAM_EXAMPLES", "data/mermaid_examples.txt"),
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
