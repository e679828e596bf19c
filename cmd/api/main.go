package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"consortium/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config and genesis.
// 2) Build the governance module (Postgres or in-memory store).
// 3) Serve HTTP until SIGINT/SIGTERM.
func main() {
	log.Println("consortium governance api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("consortium governance api stopped with error: %v", err)
	}
}
