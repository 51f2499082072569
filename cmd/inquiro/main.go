// Command inquiro runs a single research query from the command line and
// prints the styled answer with its sources.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/config"
	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2).
			Width(100)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))
)

func main() {
	iterations := flag.Int("iterations", 3, "maximum research iterations")
	provider := flag.String("provider", "", "search provider (default: first configured)")
	depth := flag.String("depth", "basic", "search depth: basic or advanced")
	authority := flag.Bool("authority", false, "restrict to high-authority domains")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: inquiro [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	log.SetDefault(log.NopLogger{})

	pool := inference.NewPool(inference.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.Model,
		VisionModel: cfg.VisionModel,
	})
	defer pool.Close()

	registry := search.NewRegistry()
	if cfg.TavilyAPIKey != "" {
		if tavily, err := search.NewTavily(cfg.TavilyAPIKey); err == nil {
			registry.Register(tavily)
		}
	}
	if cfg.BraveAPIKey != "" {
		if brave, err := search.NewBrave(cfg.BraveAPIKey); err == nil {
			registry.Register(brave)
		}
	}
	registry.Register(search.NewDuckDuckGo())

	var domains []string
	if *authority {
		domains = []string{search.AuthorityHigh}
	}

	researcher := agent.NewResearcher(pool, registry, nil)
	answer, err := researcher.Research(context.Background(), agent.Query{
		Text:           query,
		MaxIterations:  *iterations,
		Provider:       *provider,
		Depth:          search.Depth(*depth),
		IncludeDomains: domains,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("research failed: "+err.Error()))
		os.Exit(1)
	}

	fmt.Println(titleStyle.Render(query))
	fmt.Println(answerStyle.Render(answer.Text))

	if len(answer.Sources) > 0 {
		fmt.Println(titleStyle.Render("Sources"))
		for _, src := range answer.Sources {
			fmt.Println(sourceStyle.Render(fmt.Sprintf("  [%d] %s (%s)", src.ID, src.Title, src.URL)))
		}
	}
}
