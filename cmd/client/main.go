package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/uploadvault/internal/buildinfo"
	"github.com/dmitrijs2005/uploadvault/internal/client/cli"
	"github.com/dmitrijs2005/uploadvault/internal/client/config"
	"github.com/dmitrijs2005/uploadvault/internal/flagx"
)

func main() {
	args := flagx.Positional(os.Args[1:], config.ValueFlags)
	if len(args) > 0 && args[0] == "version" {
		buildinfo.PrintBuildData(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx, args); err != nil {
		log.Printf("%v", err)
		app.Close()
		os.Exit(1)
	}
}
