package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/cache/store"
	"github.com/sweetpotato0/studygen/catalog"
	"github.com/sweetpotato0/studygen/config"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/contrib/provider/claude"
	"github.com/sweetpotato0/studygen/contrib/provider/gemini"
	"github.com/sweetpotato0/studygen/contrib/provider/openai"
	"github.com/sweetpotato0/studygen/contrib/retrieval/inmemory"
	"github.com/sweetpotato0/studygen/contrib/retrieval/pg"
	"github.com/sweetpotato0/studygen/contrib/retrieval/sqlite"
	"github.com/sweetpotato0/studygen/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/studygen/curator"
	"github.com/sweetpotato0/studygen/expert"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/middleware"
	"github.com/sweetpotato0/studygen/middleware/enricher"
	"github.com/sweetpotato0/studygen/middleware/errorhandler"
	"github.com/sweetpotato0/studygen/middleware/limiter"
	"github.com/sweetpotato0/studygen/middleware/logger"
	"github.com/sweetpotato0/studygen/middleware/validator"
	"github.com/sweetpotato0/studygen/orchestrator"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"github.com/sweetpotato0/studygen/planner"
	"github.com/sweetpotato0/studygen/prompt"
	"github.com/sweetpotato0/studygen/retrieval"
	"github.com/sweetpotato0/studygen/synthesizer"
)

// app is the wired pipeline plus everything that must be closed with it.
type app struct {
	cfg          *config.Config
	catalog      *catalog.Catalog
	orchestrator *orchestrator.Orchestrator
	closers      []func(context.Context) error
	logger       *slog.Logger
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func closeErr(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}

// newApp wires the pipeline described by cfg. On error everything opened so
// far is closed.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logging.WithComponent("studygen")}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Disable:        cfg.Telemetry.Disable,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(shutdown)

	a.catalog = catalog.Default()
	if cfg.Pipeline.CatalogPath != "" {
		if a.catalog, err = catalog.Load(cfg.Pipeline.CatalogPath); err != nil {
			return nil, err
		}
	}

	data, source, err := planner.Load(cfg.Pipeline.PlanningDataPath)
	if err != nil {
		return nil, err
	}
	plan := planner.New(data)
	a.logger.Info("planning data loaded", "source", source)

	completer, err := a.completer(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := a.documentStore(ctx)
	if err != nil {
		return nil, err
	}
	retriever := retrieval.New(docs)

	artifacts, err := a.cacheStore(ctx)
	if err != nil {
		return nil, err
	}

	prompts := prompt.Default()
	if dir := cfg.Pipeline.PromptsDir; dir != "" {
		loaded, err := prompts.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		a.logger.Info("prompt overrides loaded", "dir", dir, "templates", loaded)
	}

	a.orchestrator, err = orchestrator.New(orchestrator.Deps{
		Catalog: a.catalog,
		Planner: plan,
		Experts: []expert.Expert{
			expert.NewTheoretical(completer, retriever, expert.WithPrompts(prompts)),
			expert.NewPractical(completer, retriever, expert.WithPrompts(prompts)),
			expert.NewTechnical(completer, retriever, expert.WithPrompts(prompts)),
		},
		Curator:     curator.New(curator.WithPatterns(plan.PracticePatterns())),
		Synthesizer: synthesizer.New(completer, synthesizer.WithPrompts(prompts)),
		Cache:       artifacts,
	}, orchestrator.WithTimeout(cfg.PipelineTimeout()))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// completer builds the configured backend wrapped in the call middleware.
func (a *app) completer(ctx context.Context) (llm.Completer, error) {
	c := a.cfg.LLM
	var backend llm.Completer
	switch c.Provider {
	case "openai":
		backend = openai.New(openai.DefaultConfig().WithAPIKey(c.APIKey).WithBaseURL(c.BaseURL).WithModel(c.Model))
	case "claude":
		cfg := claude.DefaultConfig(c.APIKey, c.BaseURL)
		if c.Model != "" {
			cfg.Model = c.Model
		}
		backend = claude.New(cfg)
	case "gemini":
		cfg := gemini.DefaultConfig(c.APIKey)
		if c.Model != "" {
			cfg.Model = c.Model
		}
		p, err := gemini.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.onClose(closeErr(p.Close))
		backend = p
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}

	var budget validator.ValidatorFunc = validator.NonEmptyPrompt
	if tok, err := tiktoken.NewTiktokenTokenizer(c.TokenizerModel); err != nil {
		a.logger.Warn("tokenizer unavailable, prompt budget not enforced", "model", c.TokenizerModel, "error", err)
	} else {
		budget = validator.All(validator.NonEmptyPrompt, validator.TokenBudget(tok, c.MaxPromptTokens))
	}

	roles := make([]string, 0, len(content.Roles))
	for _, r := range content.Roles {
		roles = append(roles, string(r))
	}
	return middleware.Wrap(backend,
		logger.NewCallLogger(logging.WithComponent("llm")),
		errorhandler.NewErrorHandler(errorhandler.Classify(c.Provider)),
		limiter.NewRateLimiter(c.RequestsPerMinute, c.Burst),
		enricher.NewContextEnricher(enricher.ForceJSONFor(roles...)),
		validator.NewInputValidator(budget),
		validator.NewResponseFilter(validator.RequireText),
	), nil
}

func (a *app) documentStore(ctx context.Context) (retrieval.Store, error) {
	c := a.cfg.Retrieval
	switch c.Driver {
	case "postgres":
		s, err := pg.New(ctx, pg.Config{DSN: c.DSN, Table: c.Table})
		if err != nil {
			return nil, err
		}
		a.onClose(closeErr(s.Close))
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, err
		}
		a.onClose(closeErr(s.Close))
		return s, nil
	default:
		s := inmemory.New()
		if c.Path != "" {
			f, err := os.Open(c.Path)
			if err != nil {
				return nil, fmt.Errorf("open corpus: %w", err)
			}
			defer f.Close()
			if err := s.LoadJSON(f); err != nil {
				return nil, err
			}
		}
		a.logger.Info("in-memory document store ready", "chunks", s.Len())
		return s, nil
	}
}

func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	c := a.cfg.Cache
	switch c.Driver {
	case "redis":
		s := store.NewRedisStore(&store.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
			TTL:      a.cfg.CacheTTL(),
		})
		a.onClose(closeErr(s.Close))
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgresStore(ctx, &store.PostgresConfig{DSN: c.Postgres.DSN, Table: c.Postgres.Table})
		if err != nil {
			return nil, err
		}
		a.onClose(closeErr(s.Close))
		return s, nil
	case "mongo":
		s, err := store.NewMongoStore(ctx, &store.MongoConfig{
			URI:        c.Mongo.URI,
			Database:   c.Mongo.Database,
			Collection: c.Mongo.Collection,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		return s, nil
	default:
		return store.NewInMemoryStore(), nil
	}
}
