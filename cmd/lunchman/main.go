// Command lunchman は社内ランチ注文サービスを起動する。
//
//	lunchman [serve]             APIサーバー
//	lunchman worker              期限切れセッションの定期削除
//	lunchman migrate [up|down|version]
//	lunchman healthcheck         Dockerヘルスチェック
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/lunchman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("lunchman exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
