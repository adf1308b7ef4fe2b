package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/config"
	"github.com/kailas-cloud/polyqa/internal/db"
	dbValkey "github.com/kailas-cloud/polyqa/internal/db/valkey"
	"github.com/kailas-cloud/polyqa/internal/domain"
	logpkg "github.com/kailas-cloud/polyqa/internal/logger"
	"github.com/kailas-cloud/polyqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/polyqa/internal/repository/budget"
	"github.com/kailas-cloud/polyqa/internal/repository/embcache"
	"github.com/kailas-cloud/polyqa/internal/repository/knowledge"
	"github.com/kailas-cloud/polyqa/internal/repository/memory"
	"github.com/kailas-cloud/polyqa/internal/transport/langdetect"
	openaiTransport "github.com/kailas-cloud/polyqa/internal/transport/openai"
	completionuc "github.com/kailas-cloud/polyqa/internal/usecase/completion"
	embeddinguc "github.com/kailas-cloud/polyqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/polyqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/polyqa/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/polyqa/internal/usecase/query"
	translationuc "github.com/kailas-cloud/polyqa/internal/usecase/translation"
	usageuc "github.com/kailas-cloud/polyqa/internal/usecase/usage"
	"github.com/kailas-cloud/polyqa/internal/version"
)

const mongoIndexTimeout = 5 * time.Second

// memoryStore is a conversation memory backend (mongo or sqlite).
type memoryStore interface {
	queryuc.Memory
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg    config.Config
	env    string
	logger *zap.Logger

	store  db.Store
	memory memoryStore

	query  *queryuc.Service
	ingest *ingestuc.Service
	health *healthuc.Service
	usage  *usageuc.Service
}

// loadConfig reads .env and the YAML config for the current ENV.
func loadConfig() (config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, "", err
	}
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, env, nil
}

// newApp builds the composition root. logEnv selects the logger flavour ("cli" for one-shot commands).
func newApp(ctx context.Context, logEnv string) (*app, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logEnv == "" {
		logEnv = env
	}

	logger, err := logpkg.NewLogger(logEnv, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, env: env, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ForceRESP2: cfg.Database.Driver == "redis",
	})
	if err != nil {
		return fmt.Errorf("failed to create database store: %w", err)
	}
	a.store = store

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)

	// Explicit registration, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterCompletionMetrics()
	metrics.RegisterQueryMetrics()
	metrics.RegisterHTTPMetrics()

	// Embedders: query and document sides differ only by instruction.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     a.logger,
	})
	queryEmbedder := a.buildEmbedder(baseEmbedder, cfg.Embedding.QueryInstruction)
	docEmbedder := a.buildEmbedder(baseEmbedder, cfg.Embedding.DocumentInstruction)

	// Completer: OpenAI-compatible -> Instrumented (budget + metrics).
	baseCompleter := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:   cfg.Completion.APIKey,
		BaseURL:  cfg.Completion.BaseURL,
		Model:    cfg.Completion.Model,
		Provider: cfg.Completion.Provider,
		Logger:   a.logger,
	})
	budget := a.buildBudget(ctx)

	// Pass nil interfaces (not typed nil pointers) when no budget is configured.
	var budgetChecker completionuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}
	completer := completionuc.NewInstrumentedCompleter(baseCompleter, cfg.Completion.Provider, budgetChecker)
	a.usage = usageuc.New(budgetReader)

	translator := a.buildTranslator(completer)

	kb := knowledge.New(store, queryEmbedder, knowledge.IndexConfig{
		Name:            cfg.Retrieval.Index,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Retrieval.HNSWM,
		HNSWEFConstruct: cfg.Retrieval.HNSWEFConstruct,
	})

	a.ingest = ingestuc.New(kb, docEmbedder).WithMaxBatchSize(cfg.Retrieval.MaxBatchSize)
	a.query = queryuc.New(translator, kb, completer, queryuc.Options{
		Model:       cfg.Completion.Model,
		TopK:        cfg.Retrieval.TopK,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	})

	a.health = healthuc.New(store).
		WithProvider("completion", baseCompleter).
		WithProvider("embedding", baseEmbedder).
		WithVersion(version.Version)

	mem, err := a.buildMemory(ctx)
	if err != nil {
		return err
	}
	if mem != nil {
		a.memory = mem
		a.query.WithMemory(mem, cfg.Memory.HistoryTurns, cfg.Memory.IncludeHistory)
		a.health.WithStore("memory", mem)
	}

	a.logger.Info("Pipeline ready",
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("index", kb.IndexName()),
		zap.String("detector", cfg.Translation.Detector),
		zap.String("memory", cfg.Memory.Driver),
		zap.Strings("health_checks", a.health.Names()),
	)
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func (a *app) buildEmbedder(base domain.Embedder, instruction string) domain.Embedder {
	cfg := a.cfg.Embedding

	var embedder domain.Embedder = base
	if cfg.Cache {
		embedder = embcache.New(base, a.store, cfg.Model, embcache.DefaultTTL, metrics.EmbeddingCacheTotal, a.logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, a.logger)

	// Outermost, so the cache key includes the instruction.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// buildBudget returns nil when no limit is configured.
func (a *app) buildBudget(ctx context.Context) *completionuc.BudgetTracker {
	budgetCfg := a.cfg.Completion.Budget
	if budgetCfg.DailyTokenLimit <= 0 && budgetCfg.MonthlyTokenLimit <= 0 {
		return nil
	}

	action := completionuc.BudgetActionWarn
	if budgetCfg.Action == "reject" {
		action = completionuc.BudgetActionReject
	}
	return completionuc.NewBudgetTracker(
		a.cfg.Completion.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, a.logger,
	).WithStore(ctx, budgetrepo.New(a.store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
}

func (a *app) buildTranslator(completer domain.Completer) *translationuc.Service {
	llm := openaiTransport.NewTranslator(completer, a.cfg.Translation.Model)
	if a.cfg.Translation.Detector == "llm" {
		return translationuc.New(llm, "llm", llm).WithKnownLanguages(langdetect.IsKnown)
	}
	return translationuc.New(langdetect.New(0), "local", llm).WithKnownLanguages(langdetect.IsKnown)
}

func (a *app) buildMemory(ctx context.Context) (memoryStore, error) {
	cfg := a.cfg.Memory
	switch cfg.Driver {
	case memory.DriverMongo:
		m, err := memory.NewMongo(cfg.URI, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo memory: %w", err)
		}
		idxCtx, cancel := context.WithTimeout(ctx, mongoIndexTimeout)
		defer cancel()
		if err := m.EnsureIndexes(idxCtx); err != nil {
			a.logger.Warn("Mongo memory indexes not ensured", zap.Error(err))
		}
		return m, nil
	case memory.DriverSQLite:
		m, err := memory.NewSQLite(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite memory: %w", err)
		}
		return m, nil
	default:
		return nil, nil
	}
}

func (a *app) close() {
	if a.memory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.memory.Close(ctx); err != nil {
			a.logger.Warn("Failed to close memory store", zap.Error(err))
		}
		cancel()
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
