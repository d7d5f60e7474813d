// Command agentloop is an interactive chat with a tool-calling model.
//
//	agentloop -config agentloop.yaml -stream
//
// Without a config file the offline echo provider is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hupe1980/agentloop"
	"github.com/hupe1980/agentloop/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: agentloop [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands inside the chat:\n  /history  print the conversation as JSON lines\n  /reset    start a new conversation\n  /exit     quit\n")
	}

	configPath := flag.String("config", "", "path to YAML configuration file")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	providerKind := flag.String("provider", "", "provider kind, overrides the config (echo, openai, anthropic, ollama)")
	modelName := flag.String("model", "", "model name, overrides the config")
	stream := flag.Bool("stream", false, "stream replies as they are generated")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *providerKind, *modelName, *stream); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadConfig(path, providerKind, modelName string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if providerKind != "" {
		cfg.Provider.Kind = providerKind
	}
	if modelName != "" {
		cfg.Provider.Model = modelName
	}
	return cfg, cfg.Validate()
}

// run wires config, provider, tools and metrics into an orchestrator and
// enters the chat loop on stdin.
func run(configPath, providerKind, modelName string, stream bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath, providerKind, modelName)
	if err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg.Provider)
	if err != nil {
		return err
	}

	tools, err := builtinTools()
	if err != nil {
		return err
	}

	collector, stop, err := startMetrics(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	defer stop()

	orch, err := agentloop.New(provider, func(o *agentloop.Options) {
		o.Config = cfg.AgentConfig()
		o.Tools = tools
		o.Logger = logger
		o.Metrics = collector
	})
	if err != nil {
		return err
	}

	info := provider.Info()
	fmt.Printf("agentloop: %s (%s), %d tools. Type /exit to quit.\n", info.Name, info.Provider, orch.Registry().Len())

	r := &repl{orch: orch, in: os.Stdin, out: os.Stdout, stream: stream}
	return r.run(ctx)
}
