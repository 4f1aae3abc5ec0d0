package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/storymap/internal/core/answer"
)

const (
	// DefaultLLMModel はデフォルトで使用するOpenAIモデル
	DefaultLLMModel = "gpt-4o-mini"

	// DefaultCompletionTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultCompletionTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// CompletionClient は OpenAI Chat Completions API を使用した LLM クライアント実装。
// 失敗はそのまま呼び出し側に返す。検索合成層は補完エラーを自動でリトライしない。
type CompletionClient struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

type completionOptions struct {
	model       string
	temperature float64
	timeout     time.Duration
}

// CompletionOption は CompletionClient のオプション設定
type CompletionOption func(*completionOptions)

// WithLLMModel はモデル名を上書きする
func WithLLMModel(model string) CompletionOption {
	return func(o *completionOptions) {
		o.model = model
	}
}

// WithTemperature は生成の温度を上書きする
func WithTemperature(temperature float64) CompletionOption {
	return func(o *completionOptions) {
		o.temperature = temperature
	}
}

// WithCompletionTimeout は1回のAPI呼び出しのタイムアウトを上書きする
func WithCompletionTimeout(timeout time.Duration) CompletionOption {
	return func(o *completionOptions) {
		o.timeout = timeout
	}
}

// NewCompletionClient は新しい CompletionClient を作成する
func NewCompletionClient(apiKey string, opts ...CompletionOption) (*CompletionClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := completionOptions{
		model:       DefaultLLMModel,
		temperature: 0,
		timeout:     DefaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &CompletionClient{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       options.model,
		temperature: options.temperature,
		timeout:     options.timeout,
	}, nil
}

// ModelName はモデル名を返す
func (c *CompletionClient) ModelName() string {
	return c.model
}

// GenerateCompletion は OpenAI API を使用してテキストを生成する
func (c *CompletionClient) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// インターフェース実装の確認
var _ answer.CompletionClient = (*CompletionClient)(nil)
