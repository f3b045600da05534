package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agentchat/internal/agent"
	"agentchat/internal/api"
	"agentchat/internal/cache"
	"agentchat/internal/config"
	"agentchat/internal/domain"
	"agentchat/internal/llm"
	"agentchat/internal/mcptools"
	"agentchat/internal/rag"
	"agentchat/internal/repository"
	"agentchat/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewConversationRepository(db)

	// Initialize response cache (disabled when redis is unreachable)
	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		responseCache = cache.New(cfg.Cache.URL, cfg.Cache.TTL, logger)
	} else {
		responseCache = cache.Disabled()
	}
	defer responseCache.Close()

	// Initialize model provider
	provider, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to initialize llm provider", zap.Error(err))
	}

	// Initialize retrieval engine (stays unavailable when the store fails)
	embedder := rag.NewOpenAIEmbedder(
		embeddingKey(cfg),
		cfg.Embedding.Model,
		cfg.Embedding.BaseURL,
	)
	engine := rag.NewEngine(rag.Options{
		PersistPath:    cfg.RAG.PersistPath,
		CollectionName: cfg.RAG.CollectionName,
		ChunkSize:      cfg.RAG.ChunkSize,
		ChunkOverlap:   cfg.RAG.ChunkOverlap,
		RetrievalK:     cfg.RAG.RetrievalK,
		ScoreThreshold: cfg.RAG.ScoreThreshold,
	}, embedder, provider, logger)

	// Connect tool servers; unreachable servers are skipped
	registry := mcptools.NewRegistry(context.Background(), cfg.MCP, logger)
	defer registry.Close()

	// Register specialized agents
	orchestrator := agent.NewOrchestrator(logger)
	if cfg.Agents.Enabled {
		registerAgents(orchestrator, provider, registry, cfg.Agents.MaxIterations, logger)
	}

	// Initialize services
	chatService := service.NewChatService(
		repo,
		orchestrator,
		engine,
		provider,
		responseCache,
		cfg.Agents.Enabled,
		cfg.Stream.ChunkDelay,
		logger,
	)
	sessionService := service.NewSessionService(repo)

	// Setup router
	router := api.SetupRouter(chatService, sessionService, engine, orchestrator, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting agentchat server",
			zap.String("address", cfg.Address()),
			zap.String("provider", provider.Name()),
			zap.String("model", provider.Model()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func registerAgents(o *agent.Orchestrator, provider llm.Provider, registry *mcptools.Registry, maxIterations int, logger *zap.Logger) {
	specs := []struct {
		agentType   domain.AgentType
		name        string
		description string
	}{
		{domain.AgentResearch, "Research Agent", "Finds, analyzes, and synthesizes information"},
		{domain.AgentCoding, "Coding Agent", "Writes, debugs, and explains code"},
		{domain.AgentDataAnalysis, "Data Analysis Agent", "Statistical analysis and insight extraction"},
		{domain.AgentGeneral, "General Agent", "General-purpose assistant with tool access"},
	}
	for _, spec := range specs {
		o.Register(agent.New(spec.agentType, spec.name, spec.description, "",
			provider, registry, maxIterations, logger))
	}
}

func embeddingKey(cfg *config.Config) string {
	if cfg.Embedding.APIKey != "" {
		return cfg.Embedding.APIKey
	}
	return cfg.LLM.APIKey
}
