package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// IndexBuildAction は文書のインデックスを構築しデータベースに保存するアクション
func IndexBuildAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("インデックス構築を開始", "document", appCtx.Container.Config.DocumentPath)

	ix, err := appCtx.Container.BuildIndex(ctx)
	if err != nil {
		slog.Error("インデックス構築に失敗しました", "error", err)
		return err
	}

	store, err := appCtx.Container.SnapshotStore(ctx)
	if err != nil {
		slog.Error("データベース接続に失敗しました", "error", err)
		return err
	}

	snapshot := ix.Snapshot()
	if err := store.Save(ctx, snapshot); err != nil {
		slog.Error("スナップショットの保存に失敗しました", "error", err)
		return err
	}

	fmt.Printf("インデックスを保存しました: %s (チャンク数: %d, 次元: %d)\n",
		ix.DocumentID(), ix.Len(), ix.Dimension())

	slog.Info("インデックス構築が完了しました",
		"snapshotID", snapshot.ID,
		"chunks", ix.Len(),
	)
	return nil
}
