package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/glicbridge/internal/browser"
	"github.com/danmuck/glicbridge/internal/config"
	"github.com/danmuck/glicbridge/internal/logging"
	"github.com/danmuck/glicbridge/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "host config path (TOML); GLICHOST_* env vars override it")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "glichost: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadHostConfig(configPath)
	if err != nil {
		return err
	}
	browserCfg, err := cfg.BrowserOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := browser.OpenStore(cfg.Browser.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := browser.NewBackend(ctx, store, browserCfg)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(server.Options{Config: cfg, Backend: backend})
	if err != nil {
		return err
	}
	log.Info().
		Str("host", cfg.Name).
		Str("host_origin", cfg.HostOrigin).
		Strs("client_origins", cfg.ClientOrigins).
		Str("db", store.Path()).
		Msg("glichost starting")
	return srv.Run(ctx)
}
