package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/uploadvault/internal/buildinfo"
	"github.com/dmitrijs2005/uploadvault/internal/server"
	"github.com/dmitrijs2005/uploadvault/internal/server/config"
	"github.com/dmitrijs2005/uploadvault/internal/server/permissions"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg, server.Hooks{CheckPermissions: permissions.OwnerOnly})

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
