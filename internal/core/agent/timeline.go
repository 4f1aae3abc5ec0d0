package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jinford/storymap/internal/core/viz"
	"github.com/jinford/storymap/pkg/jsonx"
)

const timelineQuery = `作品中の出来事をJSON形式のリストにまとめてください:
[
    {
        "date": "出来事の日付や時期",
        "event": "出来事の簡潔な説明"
    }
]
出来事は10件までに絞ってください。`

// TimelineAgent は作品中の出来事の年表データを取得するエージェント
type TimelineAgent struct {
	engine Engine
	logger *slog.Logger
}

type TimelineAgentOption func(*TimelineAgent)

// WithTimelineLogger は TimelineAgent にロガーを設定する
func WithTimelineLogger(logger *slog.Logger) TimelineAgentOption {
	return func(a *TimelineAgent) {
		a.logger = logger
	}
}

// NewTimelineAgent は新しい TimelineAgent を作成する
func NewTimelineAgent(engine Engine, opts ...TimelineAgentOption) *TimelineAgent {
	agent := &TimelineAgent{
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

// Events は出来事の一覧を時系列で取得する
func (a *TimelineAgent) Events(ctx context.Context) ([]viz.TimelineEvent, error) {
	a.logger.InfoContext(ctx, "年表データを取得します")

	answer, err := a.engine.Answer(ctx, timelineQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}

	raw, err := jsonx.ExtractArray(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract timeline array: %w", ErrAgent, err)
	}

	var events []viz.TimelineEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("%w: failed to parse timeline json: %w", ErrAgent, err)
	}

	a.logger.InfoContext(ctx, "年表データを取得しました", slog.Int("events", len(events)))
	return events, nil
}
