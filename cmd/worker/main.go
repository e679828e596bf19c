package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"consortium/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config and genesis.
// 2) Build app wiring.
// 3) Run the outbox relay and the timeout keeper until SIGINT/SIGTERM.
func main() {
	log.Println("consortium governance worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("consortium governance worker stopped with error: %v", err)
	}
}
