// Package main provides the webpilot CLI, an interactive agent that lets
// an LLM drive a real browser to accomplish user tasks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/webpilot/pkg/agent"
	"github.com/entrhq/webpilot/pkg/config"
	"github.com/entrhq/webpilot/pkg/llm/openrouter"
	"github.com/entrhq/webpilot/pkg/logging"
	"github.com/entrhq/webpilot/pkg/security/workspace"
	"github.com/entrhq/webpilot/pkg/tools/browser"
)

const version = "0.1.0"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config file (default: ~/.webpilot/config.yaml)")
		model       = flag.String("model", "", "Model to use (default: from OPENROUTER_MODEL env var or "+openrouter.DefaultModel+")")
		apiKey      = flag.String("api-key", "", "OpenRouter API key (default: from OPENROUTER_API_KEY env var)")
		headed      = flag.Bool("headed", false, "Run the browser with a visible window")
		debug       = flag.Bool("debug", false, "Enable debug mode")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "webpilot - LLM-powered browser automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: webpilot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  OPENROUTER_API_KEY  OpenRouter API key (required)\n")
		fmt.Fprintf(os.Stderr, "  OPENROUTER_MODEL    Model to use\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("webpilot v%s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *headed {
		cfg.Headless = false
	}
	if *debug {
		cfg.Debug = true
	}

	if cfg.APIKey == "" {
		log.Fatal("OpenRouter API key not found. Set OPENROUTER_API_KEY or pass -api-key.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	recorder, err := logging.NewSessionRecorder(cfg.RunsDir)
	if err != nil {
		return fmt.Errorf("failed to create session recorder: %w", err)
	}
	defer recorder.Close()

	clientOpts := []openrouter.ClientOption{openrouter.WithTimeout(cfg.HTTPTimeout)}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, openrouter.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openrouter.WithBaseURL(cfg.BaseURL))
	}
	client, err := openrouter.NewClient(cfg.APIKey, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create OpenRouter client: %w", err)
	}

	guard, err := workspace.NewGuard(".")
	if err != nil {
		return fmt.Errorf("failed to create workspace guard: %w", err)
	}

	managerOpts := []browser.ManagerOption{browser.WithHeadless(cfg.Headless)}
	if browserLog, logErr := recorder.BrowserLog(); logErr == nil {
		managerOpts = append(managerOpts, browser.WithDriverOutput(browserLog))
	}
	manager := browser.NewManager(managerOpts...)
	fmt.Println("Starting browser driver...")
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer manager.Shutdown()

	executor := browser.NewExecutor(manager,
		browser.WithActionTimeout(cfg.ActionTimeout),
		browser.WithScreenshotDir(recorder.SessionDir()),
		browser.WithPathGuard(guard),
	)

	controller := agent.NewController(client, executor,
		agent.WithRecorder(recorder),
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithCustomInstructions(cfg.CustomInstructions),
		agent.WithDebug(cfg.Debug),
	)

	repl := newREPL(controller, recorder, cfg.Debug)
	return repl.Run(ctx)
}
