// Package main runs the webpilot server: an LLM-driven browsing agent
// exposed over HTTP and websockets. Clients create sessions, hand the
// agent goals, and watch progress stream back while it drives a real
// browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/altamira-dev/webpilot/pkg/agent/memory"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
	"github.com/altamira-dev/webpilot/pkg/browser"
	"github.com/altamira-dev/webpilot/pkg/config"
	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/llm/gemini"
	"github.com/altamira-dev/webpilot/pkg/llm/openai"
	"github.com/altamira-dev/webpilot/pkg/llm/tokenizer"
	"github.com/altamira-dev/webpilot/pkg/logging"
	"github.com/altamira-dev/webpilot/pkg/server"
	"github.com/altamira-dev/webpilot/pkg/session"
)

const shutdownGrace = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	addr := flag.String("addr", "", "listen address, overriding the configuration")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "webpilot-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := logging.NewLogger("main")
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	ctx := context.Background()
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing model provider: %w", err)
	}

	store, err := artifacts.NewStore(cfg.Artifacts.Root)
	if err != nil {
		return fmt.Errorf("initializing artifact store: %w", err)
	}

	launcher := browser.NewPlaywrightLauncher()
	pool, err := buildPool(cfg, launcher)
	if err != nil {
		return fmt.Errorf("initializing browser pool: %w", err)
	}
	pool.StartReaper()

	registry := session.NewRegistry(pool, store, registryOptions(cfg)...)
	registry.StartReaper()

	srv := server.New(
		registry,
		provider,
		store,
		server.TokenMap(cfg.Server.AuthTokens),
		server.WithMaxSteps(cfg.Loop.MaxSteps),
	)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s (provider: %s, model: %s)",
			cfg.Server.Addr, cfg.LLM.Provider, provider.Model())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case sig := <-stop:
		logger.Infof("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown incomplete: %v", err)
	}

	registry.Shutdown()
	pool.Close()
	launcher.Stop()
	logger.Infof("Shutdown complete")
	return nil
}

func buildProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return gemini.NewProvider(ctx, cfg.LLM.APIKey, gemini.WithConfig(cfg.LLM.Generation))
	case config.ProviderOpenAI:
		opts := []openai.ProviderOption{openai.WithConfig(cfg.LLM.Generation)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.NewProvider(cfg.LLM.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}

func buildPool(cfg *config.Config, launcher browser.Launcher) (*browser.Pool, error) {
	opts := []browser.PoolOption{
		browser.WithHeadless(cfg.Browser.Headless),
		browser.WithIdleTimeout(cfg.Browser.IdleTimeout.Std()),
	}
	if len(cfg.Browser.AllowedURLs) > 0 {
		allow, err := browser.WithAllowedURLs(cfg.Browser.AllowedURLs)
		if err != nil {
			return nil, fmt.Errorf("compiling URL allowlist: %w", err)
		}
		opts = append(opts, allow)
	}
	return browser.NewPool(launcher, opts...), nil
}

func registryOptions(cfg *config.Config) []session.Option {
	conversationOpts := []memory.Option{
		memory.WithSummarizationThreshold(cfg.Memory.SummarizationThreshold),
	}
	// Token estimation falls back to a character heuristic when the
	// tiktoken tables cannot be loaded.
	if tok, err := tokenizer.New(); err == nil {
		conversationOpts = append(conversationOpts, memory.WithTokenizer(tok))
	}

	return []session.Option{
		session.WithQueueCapacity(cfg.Progress.QueueCapacity),
		session.WithIdleTimeout(cfg.Session.IdleTimeout.Std()),
		session.WithConversationOptions(conversationOpts...),
	}
}
