package main

// ---------------------------------------------------------------------------
// cmd_serve.go — start the engine with the REST API
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semfire-project/semfire/internal/api"
	"github.com/semfire-project/semfire/internal/engine"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	port := fs.Int("port", 0, "API port override")
	noBanner := fs.Bool("no-banner", false, "Suppress the startup banner")
	fs.Parse(args)

	cfg := loadConfigOrDefault(envConfig(*configPath))
	if p := envPort(*port); p != 0 {
		cfg.Server.Port = p
	}

	if !*noBanner && isTTY(os.Stdout) {
		fmt.Print(bannerText())
		fmt.Printf("  %s\n\n", dim("v"+version))
	}

	eng, err := engine.New(cfg)
	if err != nil {
		errorf("building engine: %v", err)
	}

	if err := eng.Start(); err != nil {
		errorf("starting engine: %v", err)
	}

	srv := api.NewServer(eng)
	if err := srv.Start(); err != nil {
		errorf("starting API server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		eng.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-eng.Context().Done():
	}

	if err := srv.Stop(); err != nil {
		warnf("stopping API server: %v", err)
	}
	if err := eng.Shutdown(); err != nil {
		warnf("shutting down engine: %v", err)
	}
}
