package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/glicbridge/internal/glic"
	"github.com/danmuck/glicbridge/internal/logging"
	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/wsbridge"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "client config path (TOML)")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "glicclient: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadClientConfig(configPath)
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}
	conn, err := wsbridge.Dial(ctx, cfg.URL, wsbridge.DialOptions{
		LocalOrigin:  cfg.Origin,
		RemoteOrigin: cfg.HostOrigin,
		Header:       header,
		Config:       wsbridge.Config{MaxDialAttempts: cfg.DialAttempts},
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	registry, err := glic.CreateHostRegistryOnLoad(ctx, conn)
	if err != nil {
		return err
	}
	defer registry.Destroy()

	if err := registry.RegisterWebClient(ctx, &demoClient{openURLs: cfg.OpenURLs}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return conn.Err()
	}
}

// demoClient exercises the browser host once it is initialized and logs
// panel notifications.
type demoClient struct {
	openURLs []string
}

func (c *demoClient) Initialize(ctx context.Context, host *glic.BrowserHost) error {
	version, err := host.GetChromeVersion(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("chrome_version", fmt.Sprintf("%d.%d.%d.%d", version.Major, version.Minor, version.Build, version.Patch)).
		Msg("connected to browser host")

	for _, u := range c.openURLs {
		tab, err := host.CreateTab(ctx, u, catalog.CreateTabOptions{})
		if err != nil {
			log.Warn().Str("url", u).Err(err).Msg("open tab failed")
			continue
		}
		log.Info().Str("tab", tab.TabID).Str("url", tab.URL).Str("title", tab.Title).Msg("tab opened")
	}

	innerText := true
	tabCtx, err := host.GetContextFromFocusedTab(ctx, catalog.ContextOptions{InnerText: &innerText})
	if err != nil {
		log.Info().Err(err).Msg("no focused tab context")
		return nil
	}
	event := log.Info().Str("tab", tabCtx.TabData.TabID).Str("url", tabCtx.TabData.URL)
	if tabCtx.WebPageData != nil {
		event = event.Int("inner_text_bytes", len(tabCtx.WebPageData.MainDocument.InnerText))
	}
	event.Msg("focused tab context")
	return nil
}

func (c *demoClient) NotifyPanelOpened(_ context.Context, dockedToWindowID *string) error {
	event := log.Info()
	if dockedToWindowID != nil {
		event = event.Str("docked_to_window_id", *dockedToWindowID)
	}
	event.Msg("panel opened")
	return nil
}

func (c *demoClient) NotifyPanelClosed(context.Context) error {
	log.Info().Msg("panel closed")
	return nil
}
