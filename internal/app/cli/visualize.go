package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/storymap/internal/core/viz"
	"github.com/jinford/storymap/internal/platform/container"
)

// GraphAction は人物相関図データを生成するアクション
func GraphAction(ctx context.Context, cmd *cli.Command) error {
	return runVisualization(ctx, cmd, produceGraph)
}

// TimelineAction は年表データを生成するアクション
func TimelineAction(ctx context.Context, cmd *cli.Command) error {
	return runVisualization(ctx, cmd, produceTimeline)
}

// MapAction は地図データを生成するアクション
func MapAction(ctx context.Context, cmd *cli.Command) error {
	return runVisualization(ctx, cmd, produceMap)
}

// DiagramsAction はmermaidダイアグラム集を生成するアクション
func DiagramsAction(ctx context.Context, cmd *cli.Command) error {
	return runVisualization(ctx, cmd, produceDiagrams)
}

// AllAction はすべての可視化データを生成するアクション。
// インデックスとエンジンを1度だけ構築し、各エージェントで使い回す。
// いずれかのデータ生成に失敗しても他のデータ生成は継続する。
func AllAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	useStore := cmd.Bool("store")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	agents, err := buildAgents(ctx, appCtx, useStore)
	if err != nil {
		return err
	}

	producers := []func(context.Context, *container.Agents) (viz.Payload, error){
		produceGraph,
		produceTimeline,
		produceMap,
		produceDiagrams,
	}

	var failures int
	for _, produce := range producers {
		payload, err := produce(ctx, agents)
		if err != nil {
			slog.Error("データ生成に失敗しました", "error", err)
			failures++
			continue
		}

		path, err := writePayload(appCtx.Container.Config.OutputDir, payload)
		if err != nil {
			slog.Error("出力に失敗しました", "error", err)
			failures++
			continue
		}
		fmt.Printf("出力しました: %s\n", path)
	}

	if failures > 0 {
		return fmt.Errorf("%d件のデータ生成に失敗しました", failures)
	}
	return nil
}

// runVisualization は単一の可視化データを生成する共通処理
func runVisualization(ctx context.Context, cmd *cli.Command, produce func(context.Context, *container.Agents) (viz.Payload, error)) error {
	envFile := cmd.String("env")
	useStore := cmd.Bool("store")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	agents, err := buildAgents(ctx, appCtx, useStore)
	if err != nil {
		return err
	}

	payload, err := produce(ctx, agents)
	if err != nil {
		slog.Error("データ生成に失敗しました", "error", err)
		return err
	}

	path, err := writePayload(appCtx.Container.Config.OutputDir, payload)
	if err != nil {
		slog.Error("出力に失敗しました", "error", err)
		return err
	}

	fmt.Printf("出力しました: %s\n", path)
	return nil
}

// buildAgents はインデックスを用意し、質問応答エンジンとエージェント群を組み立てる
func buildAgents(ctx context.Context, appCtx *AppContext, useStore bool) (*container.Agents, error) {
	ix, err := prepareIndex(ctx, appCtx, useStore)
	if err != nil {
		slog.Error("インデックスの準備に失敗しました", "error", err)
		return nil, err
	}

	engine := appCtx.Container.AnswerService(ix)
	return appCtx.Container.NewAgents(engine), nil
}

func produceGraph(ctx context.Context, agents *container.Agents) (viz.Payload, error) {
	relations, err := agents.Relation.Relations(ctx)
	if err != nil {
		return viz.Payload{}, err
	}
	return viz.NewGraphPayload(relations), nil
}

func produceTimeline(ctx context.Context, agents *container.Agents) (viz.Payload, error) {
	events, err := agents.Timeline.Events(ctx)
	if err != nil {
		return viz.Payload{}, err
	}
	return viz.NewTimelinePayload(events), nil
}

func produceMap(ctx context.Context, agents *container.Agents) (viz.Payload, error) {
	data, err := agents.Geography.Toponyms(ctx)
	if err != nil {
		return viz.Payload{}, err
	}
	if len(data.Skipped) > 0 {
		slog.Warn("座標を解決できなかった地名があります", "skipped", data.Skipped)
	}
	return viz.NewMapPayload(data), nil
}

func produceDiagrams(ctx context.Context, agents *container.Agents) (viz.Payload, error) {
	diagrams, err := agents.Diagram.Diagrams(ctx)
	if err != nil {
		return viz.Payload{}, err
	}
	return viz.NewDiagramsPayload(diagrams), nil
}
