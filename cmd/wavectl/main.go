// Command wavectl runs the autoscaling control plane: it loads
// wave-config.yaml, opens the Definition Store, and serves the admin/
// ingest HTTP API while the Definition Synchroniser, Metric Updater and
// Collector Config Emitter run in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"wavectl/internal/app"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "./wave-config.yaml", "path to wave-config.yaml")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("wavectl – autoscaling control plane")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, configPath)
	if err != nil {
		log.Fatalf("wavectl: startup failed: %v", err)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("wavectl: signal received, shutting down")
		cancel()
		<-sigCh
		log.Println("wavectl: second signal received, forcing exit")
		os.Exit(1)
	}()

	if err := a.Run(ctx); err != nil {
		a.Shutdown(context.Background())
		log.Fatalf("wavectl: %v", err)
	}
	a.Shutdown(context.Background())
}
