package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/storymap/internal/core/viz"
)

const geographyQuery = `作品に登場する地理的な場所の一覧を出力してください。場所の名前のみをカンマ区切りで並べてください。`

// Geocoder は地名から座標を解決する。
// found が false の場合はその地名が見つからなかったことを示し、エラーとは区別される。
type Geocoder interface {
	Coordinates(ctx context.Context, name string) (coords viz.Coordinates, found bool, err error)
}

// GeographyAgent は作品中の地名と座標を取得するエージェント
type GeographyAgent struct {
	engine   Engine
	geocoder Geocoder
	logger   *slog.Logger
}

type GeographyAgentOption func(*GeographyAgent)

// WithGeographyLogger は GeographyAgent にロガーを設定する
func WithGeographyLogger(logger *slog.Logger) GeographyAgentOption {
	return func(a *GeographyAgent) {
		a.logger = logger
	}
}

// NewGeographyAgent は新しい GeographyAgent を作成する
func NewGeographyAgent(engine Engine, geocoder Geocoder, opts ...GeographyAgentOption) *GeographyAgent {
	agent := &GeographyAgent{
		engine:   engine,
		geocoder: geocoder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	if agent.logger == nil {
		agent.logger = slog.Default()
	}
	return agent
}

// Toponyms は地名一覧をエンジンから取得し、座標を解決して返す。
// 座標が解決できなかった地名は捨てずに Skipped として報告する。
func (a *GeographyAgent) Toponyms(ctx context.Context) (*viz.MapData, error) {
	a.logger.InfoContext(ctx, "地名の一覧を取得します")

	answer, err := a.engine.Answer(ctx, geographyQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query toponyms: %w", err)
	}

	names := splitNames(answer)
	a.logger.InfoContext(ctx, "座標を解決します", slog.Int("toponyms", len(names)))

	data := &viz.MapData{}
	for _, name := range names {
		coords, found, err := a.geocoder.Coordinates(ctx, name)
		if err != nil {
			a.logger.WarnContext(ctx, "座標の解決に失敗しました", slog.String("name", name), slog.String("error", err.Error()))
			data.Skipped = append(data.Skipped, name)
			continue
		}
		if !found {
			a.logger.WarnContext(ctx, "座標が見つかりませんでした", slog.String("name", name))
			data.Skipped = append(data.Skipped, name)
			continue
		}
		data.Locations = append(data.Locations, viz.Location{Name: name, Coordinates: coords})
	}

	a.logger.InfoContext(ctx, "座標の解決が完了しました",
		slog.Int("resolved", len(data.Locations)),
		slog.Int("skipped", len(data.Skipped)),
	)
	return data, nil
}

// splitNames はカンマ区切りの地名一覧を分割し、重複を初出順を保って取り除く
func splitNames(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '、' || r == '，' || r == '\n'
	})

	seen := make(map[string]struct{}, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
