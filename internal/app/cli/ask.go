package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// AskAction は自由形式の質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	useStore := cmd.Bool("store")

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始", "question", question)

	ix, err := prepareIndex(ctx, appCtx, useStore)
	if err != nil {
		slog.Error("インデックスの準備に失敗しました", "error", err)
		return err
	}

	svc := appCtx.Container.AnswerService(ix)
	result, err := svc.Answer(ctx, question)
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result)

	slog.Info("質問応答が完了しました")
	return nil
}
