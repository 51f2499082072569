// Command inquirod runs the research and memory HTTP service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/api"
	"github.com/inquiro/inquiro/config"
	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/ingest"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/memgraph"
	"github.com/inquiro/inquiro/search"
	"github.com/inquiro/inquiro/store"
)

func main() {
	cfg := config.Load()
	logger := log.NewGolog(log.ParseLevel(getenv("LOG_LEVEL", "info")))
	log.SetDefault(logger)

	pool := inference.NewPool(inference.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.Model,
		VisionModel: cfg.VisionModel,
	})
	defer pool.Close()

	embedder, err := inference.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	if err != nil {
		logger.Error("embedder init failed: %v", err)
		os.Exit(1)
	}

	facade, err := buildStore(cfg, embedder, logger)
	if err != nil {
		logger.Error("store init failed: %v", err)
		os.Exit(1)
	}
	defer facade.Close()

	providers := buildProviders(cfg, logger)

	researcher := agent.NewResearcher(pool, providers, facade)
	chat := agent.NewChat(pool, facade, researcher)
	ingestor := ingest.NewIngestor(pool, facade,
		ingest.WithWorkers(cfg.IngestWorkers),
		ingest.WithMaxBytes(cfg.MaxUploadBytes))
	graphView := memgraph.NewBuilder(facade)

	server := api.NewServer(researcher, chat, ingestor, graphView)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error: %v", err)
	}
}

// buildStore wires the graph and vector engines, falling back to a local
// sqlite store when neither engine is reachable.
func buildStore(cfg *config.Config, embedder inference.Embedder, logger log.Logger) (*store.Facade, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var graph store.GraphStore
	var vector store.VectorStore

	falkor, err := store.NewFalkorDB(cfg.GraphURL)
	if err == nil {
		if pingErr := falkor.Ping(ctx); pingErr == nil {
			graph = falkor
		} else {
			logger.Warn("graph engine unreachable: %v", pingErr)
			falkor.Close()
		}
	} else {
		logger.Warn("graph engine config invalid: %v", err)
	}

	if cfg.PostgresURL != "" {
		pg, err := store.NewPostgresVectorStore(ctx, store.PostgresOptions{ConnString: cfg.PostgresURL})
		if err == nil {
			if pingErr := pg.Ping(ctx); pingErr == nil {
				if err := pg.InitSchema(ctx); err != nil {
					return nil, err
				}
				vector = pg
			} else {
				logger.Warn("vector engine unreachable: %v", pingErr)
				pg.Close()
			}
		} else {
			logger.Warn("vector engine config invalid: %v", err)
		}
	}

	if graph == nil || vector == nil {
		local, err := store.OpenLocalStore(cfg.FallbackPath)
		if err != nil {
			return nil, err
		}
		if graph == nil {
			logger.Warn("using local fallback for graph records")
			graph = local
		}
		if vector == nil {
			if cfg.PostgresURL != "" {
				logger.Warn("using local fallback for vector records")
			}
			vector = local
		}
	}

	return store.NewFacade(graph, vector, embedder), nil
}

// buildProviders registers every search provider with credentials available.
// Registration order sets the default: tavily preferred, duckduckgo always
// present as the keyless fallback.
func buildProviders(cfg *config.Config, logger log.Logger) *search.Registry {
	registry := search.NewRegistry()

	if cfg.TavilyAPIKey != "" {
		if tavily, err := search.NewTavily(cfg.TavilyAPIKey); err == nil {
			registry.Register(tavily)
		} else {
			logger.Warn("tavily disabled: %v", err)
		}
	}
	if cfg.BraveAPIKey != "" {
		if brave, err := search.NewBrave(cfg.BraveAPIKey); err == nil {
			registry.Register(brave)
		} else {
			logger.Warn("brave disabled: %v", err)
		}
	}
	registry.Register(search.NewDuckDuckGo())

	logger.Info("search providers: %v", registry.Names())
	return registry
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
