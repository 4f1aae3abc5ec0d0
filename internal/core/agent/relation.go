package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jinford/storymap/internal/core/viz"
	"github.com/jinford/storymap/pkg/jsonx"
)

const relationsQuery = `作品に登場する主要な人物の関係をJSON形式のリストで表してください。各要素は次の形式に従ってください:
{
    "name": "ある人物の名前",
    "links": {
        "別の人物の名前": "二人の関係の種類",
        ...
    }
}
関係の種類は簡潔にしてください。例: 父、妹、友人、知人、配偶者 など。`

// RelationAgent は登場人物の相関データを取得するエージェント
type RelationAgent struct {
	engine Engine
	logger *slog.Logger
}

type RelationAgentOption func(*RelationAgent)

// WithRelationLogger は RelationAgent にロガーを設定する
func WithRelationLogger(logger *slog.Logger) RelationAgentOption {
	return func(a *RelationAgent) {
		a.logger = logger
	}
}

// NewRelationAgent は新しい RelationAgent を作成する
func NewRelationAgent(engine Engine, opts ...RelationAgentOption) *RelationAgent {
	agent := &RelationAgent{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	if agent.logger == nil {
		agent.logger = slog.Default()
	}
	return agent
}

// Relations は登場人物の相関リストを取得する
func (a *RelationAgent) Relations(ctx context.Context) ([]viz.CharacterRelation, error) {
	a.logger.InfoContext(ctx, "人物相関データを取得します")

	answer, err := a.engine.Answer(ctx, relationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}

	raw, err := jsonx.ExtractArray(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract relations array: %w", ErrAgent, err)
	}

	var relations []viz.CharacterRelation
	if err := json.Unmarshal([]byte(raw), &relations); err != nil {
		return nil, fmt.Errorf("%w: failed to parse relations json: %w", ErrAgent, err)
	}

	a.logger.InfoContext(ctx, "人物相関データを取得しました", slog.Int("characters", len(relations)))
	return relations, nil
}
