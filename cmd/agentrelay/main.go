// Command agentrelay serves the relay over HTTP.
//
//	agentrelay -config config/agentrelay.yaml
//
// Configuration is read from the file given by -config (or AGENTRELAY_CONFIG)
// and overridden by environment variables; see package config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/artifact"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/intent"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	anthropicmodel "github.com/hupe1980/agentrelay/model/anthropic"
	openaimodel "github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "agentrelay: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	llm, err := newModel(cfg.Model)
	if err != nil {
		return err
	}
	logger.Info("model.configured", "provider", llm.Info().Provider, "model", llm.Info().Name)

	phrases, err := cfg.Phrases()
	if err != nil {
		return fmt.Errorf("load phrases: %w", err)
	}
	classifier := intent.NewPhraseClassifier(phrases, func(o *intent.PhraseClassifierOptions) {
		o.Logger = logger.WithComponent("intent")
	})

	relay, err := agentrelay.FromConfig(cfg, llm, classifier, logger)
	if err != nil {
		return err
	}

	srv := server.New(relay, func(o *server.Options) {
		o.MaxUploadBytes = cfg.Server.MaxUploadBytes
		o.AllowOrigins = cfg.Server.AllowOrigins
		o.Documents = artifact.NewInMemoryStore(func(o *artifact.InMemoryOptions) {
			o.MaxPerScope = cfg.Server.MaxDocuments
		})
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Classifier.Watch && cfg.Classifier.PhrasesFile != "" {
		err := intent.Watch(ctx, cfg.Classifier.PhrasesFile, classifier, func(o *intent.WatchOptions) {
			o.Logger = logger.WithComponent("intent")
		})
		if err != nil {
			logger.Warn("intent.watch.failed", "path", cfg.Classifier.PhrasesFile, "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server.shutdown.failed", "error", err)
	}
	logger.Info("server.stopped")
	return nil
}

func newModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
			o.BaseURL = mc.BaseURL
			o.APIKey = mc.APIKey
			o.Temperature = mc.Temperature
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if mc.Name != "" {
				o.Model = anthropic.Model(mc.Name)
			}
			o.BaseURL = mc.BaseURL
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
			o.Temperature = mc.Temperature
		}), nil
	case "mock":
		return model.NewMockModel(mc.Name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}
