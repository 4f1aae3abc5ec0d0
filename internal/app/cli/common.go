// Package cli はコマンドラインアプリケーションのアクションを実装する。
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jinford/storymap/internal/core/index"
	"github.com/jinford/storymap/internal/core/viz"
	"github.com/jinford/storymap/internal/platform/container"
	"github.com/jinford/storymap/internal/platform/logger"
	"github.com/jinford/storymap/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})

	cont, err := container.NewContainer(cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// prepareIndex は回答生成に使うインデックスを用意する。
// useStore が true の場合はデータベースの保存済みスナップショットを優先し、
// 無ければ構築して保存する。false の場合は毎回構築する。
func prepareIndex(ctx context.Context, appCtx *AppContext, useStore bool) (*index.Index, error) {
	if !useStore {
		return appCtx.Container.BuildIndex(ctx)
	}

	store, err := appCtx.Container.SnapshotStore(ctx)
	if err != nil {
		return nil, err
	}

	// 読み込みキーは保存時のスナップショットのDocument ID（文書パス）と一致させる
	return loadOrBuildIndex(ctx, store, appCtx.Container.Config.DocumentPath, appCtx.Container.BuildIndex)
}

// loadOrBuildIndex はストアの保存済みスナップショットを優先してインデックスを用意する。
// documentID に対応するスナップショットが無い場合のみ build を呼び、結果を保存する。
func loadOrBuildIndex(ctx context.Context, store index.Store, documentID string, build func(context.Context) (*index.Index, error)) (*index.Index, error) {
	snapshot, err := store.Load(ctx, documentID)
	if err == nil {
		slog.Info("保存済みスナップショットからインデックスを復元します", "documentID", documentID)
		return index.FromSnapshot(snapshot)
	}
	if !errors.Is(err, index.ErrSnapshotNotFound) {
		return nil, err
	}

	slog.Info("スナップショットが無いためインデックスを構築します", "documentID", documentID)
	ix, err := build(ctx)
	if err != nil {
		return nil, err
	}

	if err := store.Save(ctx, ix.Snapshot()); err != nil {
		return nil, fmt.Errorf("スナップショットの保存に失敗: %w", err)
	}
	return ix, nil
}

// writePayload はペイロードを整形して出力ディレクトリに書き込み、そのパスを返す
func writePayload(outputDir string, payload viz.Payload) (string, error) {
	filename, data, err := viz.Render(payload)
	if err != nil {
		return "", fmt.Errorf("整形に失敗: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("出力ファイルの書き込みに失敗: %w", err)
	}
	return path, nil
}
