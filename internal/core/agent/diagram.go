package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jinford/storymap/internal/core/viz"
	"github.com/jinford/storymap/pkg/jsonx"
)

// examplesMarker はクエリテンプレート内で例文に置き換えられる目印
const examplesMarker = "{{EXAMPLES}}"

const diagramsQueryTemplate = `この作品を読み込み、内容に基づいたインフォグラフィックとして使えるmermaidダイアグラムを複数考案し、短い説明付きのリストにまとめてください。

ダイアグラムは10個までにしてください。

分かりやすく、興味を引くものにしてください。

良いダイアグラムの例をいくつか挙げます:

{{EXAMPLES}}

これらの種類をすべて使う必要はありません。この作品に合わないものは使わないでください。あくまで過去に良かった例として挙げているだけです。

結果は次のJSON配列の形式で返してください:
[
    {
        "title": "ダイアグラムの短いタイトル",
        "code": "mermaidダイアグラムのコード",
        "type": "ダイアグラムの種類 (timeline, flowchart, graph, classDiagram, sequenceDiagram, mindmap, pie など)"
    }
]`

// DiagramAgent は作品の内容を表すmermaidダイアグラム集を取得するエージェント
type DiagramAgent struct {
	engine       Engine
	examplesPath string
	logger       *slog.Logger
}

type DiagramAgentOption func(*DiagramAgent)

// WithDiagramLogger は DiagramAgent にロガーを設定する
func WithDiagramLogger(logger *slog.Logger) DiagramAgentOption {
	return func(a *DiagramAgent) {
		a.logger = logger
	}
}

// NewDiagramAgent は新しい DiagramAgent を作成する。
// examplesPath は良いダイアグラムの例を収めたテキストファイルへのパス。
func NewDiagramAgent(engine Engine, examplesPath string, opts ...DiagramAgentOption) *DiagramAgent {
	agent := &DiagramAgent{
		engine:       engine,
		examplesPath: examplesPath,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	if agent.logger == nil {
		agent.logger = slog.Default()
	}
	return agent
}

// Diagrams はmermaidダイアグラムの一覧を取得する
func (a *DiagramAgent) Diagrams(ctx context.Context) ([]viz.Diagram, error) {
	examples, err := a.loadExamples()
	if err != nil {
		return nil, err
	}

	query := strings.ReplaceAll(diagramsQueryTemplate, examplesMarker, examples)

	a.logger.InfoContext(ctx, "ダイアグラムデータを取得します")
	answer, err := a.engine.Answer(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagrams: %w", err)
	}

	raw, err := jsonx.ExtractArray(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract diagrams array: %w", ErrAgent, err)
	}

	var diagrams []viz.Diagram
	if err := json.Unmarshal([]byte(raw), &diagrams); err != nil {
		return nil, fmt.Errorf("%w: failed to parse diagrams json: %w", ErrAgent, err)
	}

	for i, d := range diagrams {
		if d.Title == "" || d.Code == "" || d.Type == "" {
			return nil, fmt.Errorf("%w: diagram %d is missing title, code or type", ErrAgent, i)
		}
	}

	a.logger.InfoContext(ctx, "ダイアグラムデータを取得しました", slog.Int("diagrams", len(diagrams)))
	return diagrams, nil
}

func (a *DiagramAgent) loadExamples() (string, error) {
	data, err := os.ReadFile(a.examplesPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to load diagram examples: %w", ErrAgent, err)
	}
	return string(data), nil
}
