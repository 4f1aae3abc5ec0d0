package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/storymap/internal/app/cli"
)

// commonFlags は全コマンドで共有するフラグ
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:  "store",
			Usage: "データベースの保存済みインデックスを利用する",
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "storymap",
		Usage: "文学作品を解析して相関図・年表・地図・ダイアグラムを生成するツール",
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "build",
						Usage: "文書のインデックスを構築してデータベースに保存",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: appcli.IndexBuildAction,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "作品への自由形式の質問に回答",
				ArgsUsage: "<質問文>",
				Flags:     commonFlags(),
				Action:    appcli.AskAction,
			},
			{
				Name:   "graph",
				Usage:  "人物相関図データを生成",
				Flags:  commonFlags(),
				Action: appcli.GraphAction,
			},
			{
				Name:   "timeline",
				Usage:  "出来事の年表を生成",
				Flags:  commonFlags(),
				Action: appcli.TimelineAction,
			},
			{
				Name:   "map",
				Usage:  "登場する地名の地図データを生成",
				Flags:  commonFlags(),
				Action: appcli.MapAction,
			},
			{
				Name:   "diagrams",
				Usage:  "mermaidダイアグラム集を生成",
				Flags:  commonFlags(),
				Action: appcli.DiagramsAction,
			},
			{
				Name:   "all",
				Usage:  "すべての可視化データをまとめて生成",
				Flags:  commonFlags(),
				Action: appcli.AllAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
