package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/ai/gemini"
	"github.com/spigell/resume-recommender/internal/extract"
	"github.com/spigell/resume-recommender/internal/logger"
	"github.com/spigell/resume-recommender/internal/notify"
	"github.com/spigell/resume-recommender/internal/objectstore"
	"github.com/spigell/resume-recommender/internal/pipeline"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/spigell/resume-recommender/internal/secrets"
	"github.com/spigell/resume-recommender/internal/server"
	"github.com/spigell/resume-recommender/internal/store"
	"go.uber.org/zap"
)

const (
	geminiKeyEnv     = "GEMINI_API_KEY"
	geminiKeyFileEnv = "GEMINI_API_KEY_FILE"
)

// application holds every client built from the config. Optional
// collaborators are nil when not configured.
type application struct {
	pipeline *pipeline.Pipeline
	records  *store.SQLStore
	objects  *objectstore.Store
	notifier *notify.AMQPPublisher
	logger   *zap.Logger
}

func newApplication(ctx context.Context, config *Config, log *zap.Logger) (*application, error) {
	app := &application{logger: log}

	generator, err := newGenerator(ctx, &config.AI, log)
	if err != nil {
		return nil, fmt.Errorf("building ai generator: %w", err)
	}

	deps := pipeline.Deps{
		Extractor: extract.New(generator, config.Extract.Mode, log.Named("extract")),
		Scorer:    newScorer(&config.Scoring, log),
		Logger:    log,
	}
	if generator != nil {
		deps.Enricher = gemini.NewEnricher(generator, log.Named("enrich"), config.AI.Gemini.MaxLogLength)
	}

	if err := app.openCollaborators(ctx, config, &deps); err != nil {
		app.Close()
		return nil, err
	}

	p, err := pipeline.New(deps, pipeline.Options{MaxFileSize: config.MaxFileSize})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.pipeline = p

	return app, nil
}

func (a *application) openCollaborators(ctx context.Context, config *Config, deps *pipeline.Deps) error {
	if config.Store.Driver != "" {
		records, err := store.Open(ctx, config.Store.Driver, config.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening results store: %w", err)
		}
		a.records = records
		deps.Store = records
	}

	if config.ObjectStore.Enabled {
		objects, err := objectstore.New(ctx, objectstore.Config{
			Bucket:    config.ObjectStore.Bucket,
			Endpoint:  config.ObjectStore.Endpoint,
			Region:    config.ObjectStore.Region,
			AccessKey: config.ObjectStore.AccessKey,
			SecretKey: config.ObjectStore.SecretKey,
			Prefix:    config.ObjectStore.Prefix,
		})
		if err != nil {
			return fmt.Errorf("building object store: %w", err)
		}
		a.objects = objects
		deps.Objects = objects
	}

	if config.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(config.Notify.AMQPURL, config.Notify.Exchange)
		if err != nil {
			return fmt.Errorf("connecting notifier: %w", err)
		}
		a.notifier = publisher
		deps.Notifier = publisher
	}

	return nil
}

// recordLoader returns the results store as an interface value that is nil
// when no store is configured.
func (a *application) recordLoader() server.RecordLoader {
	if a.records == nil {
		return nil
	}
	return a.records
}

func (a *application) Close() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("closing notifier", zap.Error(err))
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			a.logger.Warn("closing results store", zap.Error(err))
		}
	}
}

// newGenerator returns nil without an error when AI is disabled or no API key
// is configured; binary uploads then fail with a missing credential error and
// enrichment is skipped.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != ProviderGemini {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:    "gemini api key",
		Value:   cfg.Gemini.APIKey,
		File:    cfg.Gemini.APIKeyFile,
		Env:     geminiKeyEnv,
		FileEnv: geminiKeyFileEnv,
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		log.Warn("ai features are unavailable",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or the GEMINI_API_KEY environment variable"),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	genLogger := logger.WithCommonFields(log, ProviderGemini, cfg.Gemini.Model).
		With(zap.String("transport", cfg.Transport))

	if cfg.Transport == TransportSDK {
		generator, err := gemini.NewGenerator(ctx, gemini.SDKConfig{
			APIKey: apiKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			return nil, err
		}
		genLogger.Debug("using genai sdk transport")
		return generator, nil
	}

	client, err := gemini.NewRESTClient(gemini.RESTConfig{
		APIKey:       apiKey,
		Model:        cfg.Gemini.Model,
		Endpoint:     cfg.Gemini.Endpoint,
		Timeout:      cfg.Gemini.Timeout,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}, genLogger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newScorer(cfg *ScoringConfig, log *zap.Logger) scoring.Scorer {
	if cfg != nil && cfg.Strategy == ScoringModel {
		scorer := scoring.NewModelScorer(cfg.ModelFile, log.Named("scoring"))
		if err := scorer.Load(); err != nil {
			log.Warn("scoring model could not be loaded, using fallback candidates",
				zap.String("path", cfg.ModelFile),
				zap.Error(err),
			)
		}
		return scorer
	}
	return scoring.NewHeuristicScorer()
}
