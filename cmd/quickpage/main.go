package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/quickpage/internal/client/cli"
	"github.com/dmitrijs2005/quickpage/internal/client/config"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
