package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := scheduler.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// One reconcile pass up front so a restart doesn't wait out the cron interval.
	app.ReconcileOnce(ctx)
	app.StartCron()

	app.SetupServer()
	app.Start(ctx)
}
