package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/config"
	"github.com/queryglass/queryglass/pkg/database"
	"github.com/queryglass/queryglass/pkg/gateway"
	"github.com/queryglass/queryglass/pkg/handlers"
	"github.com/queryglass/queryglass/pkg/introspect"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/logging"
	"github.com/queryglass/queryglass/pkg/middleware"
	"github.com/queryglass/queryglass/pkg/policy"
	"github.com/queryglass/queryglass/pkg/repair"
	"github.com/queryglass/queryglass/pkg/store"
	"github.com/queryglass/queryglass/pkg/synthesis"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("synthesis_mode", cfg.Synthesis.Mode),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("store", logging.SanitizeConnectionString(cfg.Store.ConnectionString())))

	ctx := context.Background()

	// Semantic-store backing database.
	storeConnStr := cfg.Store.ConnectionString()
	sqlDB, err := sql.Open("pgx", storeConnStr)
	if err != nil {
		logger.Fatal("Failed to open store database for migrations", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, migrationsDir, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            storeConnStr,
		MaxConnections: cfg.Store.MaxConns,
	})
	if err != nil {
		logger.Fatal("Failed to connect to store database", zap.Error(err))
	}
	defer db.Close()

	chatClient, embedClient, err := llm.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM clients", zap.Error(err))
	}

	policyEngine := policy.NewEngine(logger)
	introspector := introspect.New(cfg.Target.ConnString, policyEngine, logger)

	searchCache := store.NewSearchCache(0, 0)
	documentStore := store.New(store.NewPgRepository(db), embedClient, searchCache, logger)

	rebuildCorpus(ctx, cfg, documentStore, introspector, logger)

	executionCache := gateway.NewExecutionCache(0, 0)
	gw := gateway.New(policyEngine, gateway.NewPgxRunner(logger), executionCache, logger)

	orchestrator, err := synthesis.NewOrchestrator(cfg.Synthesis.Mode, synthesis.Deps{
		Client:    chatClient,
		Schema:    introspector,
		Documents: documentStore,
		Resolver:  introspector,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Failed to create orchestrator", zap.Error(err))
	}

	repairLoop := repair.New(gw, chatClient, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(cfg, orchestrator, repairLoop, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting queryglass",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// rebuildCorpus embeds the target schema plus the curated corpus file
// into the document store. Failures degrade retrieval rather than
// blocking startup: an embedding failure leaves the previous corpus in
// place, while an upsert failure after the clear leaves the store empty
// until the next rebuild.
func rebuildCorpus(ctx context.Context, cfg *config.Config, documentStore *store.Store, introspector *introspect.Introspector, logger *zap.Logger) {
	tables, err := introspector.ListTables(ctx)
	if err != nil {
		logger.Warn("Skipping corpus rebuild: target schema unavailable", zap.Error(err))
		return
	}
	fks, err := introspector.ListForeignKeys(ctx)
	if err != nil {
		logger.Warn("Skipping corpus rebuild: foreign keys unavailable", zap.Error(err))
		return
	}
	docs, err := store.LoadCorpus(cfg.Store.CorpusPath)
	if err != nil {
		logger.Warn("Skipping curated corpus entries", zap.Error(err))
	}

	count, err := documentStore.Rebuild(ctx, tables, fks, docs)
	if err != nil {
		logger.Warn("Corpus rebuild failed", zap.Error(err))
		return
	}
	logger.Info("Corpus ready", zap.Int("entries", count))
}
