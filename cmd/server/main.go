package main

import (
	"context"
	"log"

	"github.com/akarpovs/cryptodrive/internal/server"
	"github.com/akarpovs/cryptodrive/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
