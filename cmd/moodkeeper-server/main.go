package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/moodkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/moodkeeper/internal/server"
	"github.com/dmitrijs2005/moodkeeper/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	if cfg.IssueToken != "" {
		if err := server.IssueToken(cfg, cfg.IssueToken, os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
