// Command inquiro-mcp exposes the research agent and web-search tools to MCP
// clients over stdio.
package main

import (
	"os"

	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/config"
	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/mcpserver"
	"github.com/inquiro/inquiro/search"
)

func main() {
	cfg := config.Load()
	// Stdout carries the protocol stream; logs go to stderr.
	logger := log.NewGolog(log.ParseLevel(getenv("LOG_LEVEL", "warn")))
	log.SetDefault(logger)

	pool := inference.NewPool(inference.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.Model,
		VisionModel: cfg.VisionModel,
	})
	defer pool.Close()

	providers := buildProviders(cfg, logger)
	researcher := agent.NewResearcher(pool, providers, nil)

	server := mcpserver.New(providers, researcher)
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp server: %v", err)
		os.Exit(1)
	}
}

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
	return registry
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
