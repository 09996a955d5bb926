// Command nestwise runs the retirement-planning dialogue engine as an
// interactive terminal session: it loads the configuration, builds the corpus
// index, serves prometheus metrics, and drives one orchestrator turn per line
// of input.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"nestwise/pkg/agents"
	"nestwise/pkg/config"
	"nestwise/pkg/contextmgr"
	"nestwise/pkg/llm"
	"nestwise/pkg/llm/anthropicc"
	"nestwise/pkg/llm/middleware/metrics"
	"nestwise/pkg/llm/middleware/timeout"
	"nestwise/pkg/llm/ollamac"
	"nestwise/pkg/llm/openaic"
	"nestwise/pkg/logx"
	"nestwise/pkg/orchestrator"
	"nestwise/pkg/profile"
	"nestwise/pkg/retrieval"
	"nestwise/pkg/state"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file (defaults apply when empty)")
	corpusDir := flag.String("corpus", "", "override the corpus directory")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *corpusDir, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "nestwise: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, corpusDir string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if corpusDir != "" {
		cfg.Retrieval.CorpusDir = corpusDir
	}
	if debug {
		cfg.Debug = true
	}
	logx.SetDebug(cfg.Debug)
	logger := logx.NewLogger("main")

	ctx := context.Background()

	clientFor, err := clientFactory(cfg)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	index, err := buildIndex(ctx, cfg, embedder, logger.WithAgentID("corpus"))
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger.WithAgentID("metrics"))
	}

	var snapshots *state.Store
	if cfg.Orchestrator.SnapshotDir != "" {
		snapshots, err = state.NewStore(cfg.Orchestrator.SnapshotDir)
		if err != nil {
			return err
		}
	}

	interviewerClient, err := clientFor(config.RoleInterviewer)
	if err != nil {
		return err
	}
	extractorClient, err := clientFor(config.RoleExtractor)
	if err != nil {
		return err
	}
	matcherClient, err := clientFor(config.RoleMatcher)
	if err != nil {
		return err
	}
	plannerClient, err := clientFor(config.RolePlanner)
	if err != nil {
		return err
	}
	summarizerClient, err := clientFor(config.RoleSummarizer)
	if err != nil {
		return err
	}

	// Token counting backs the secondary compaction trigger. Construction can
	// fail only when the encoding tables are unavailable; the contexts then
	// fall back to character estimates.
	counter, err := contextmgr.NewTokenCounter(cfg.Models.Interviewer)
	if err != nil {
		logger.Warn("token counter unavailable, using character estimates: %v", err)
	}

	orch := orchestrator.New(
		agents.NewInterviewer(interviewerClient),
		agents.NewExtractor(extractorClient),
		agents.NewMatcher(matcherClient, profile.MustLoadRegistry()),
		agents.NewPlanner(plannerClient, index, cfg.Retrieval.MaxQueries, cfg.Retrieval.TopK),
		agents.NewSummarizer(summarizerClient),
		orchestrator.NewManagerWithCounter(counter),
		snapshots,
		cfg.Orchestrator.CompletenessThreshold,
		cfg.Orchestrator.SummarizeThreshold,
		cfg.Orchestrator.SummarizeTokenBudget,
	)

	return repl(ctx, orch)
}

// clientFactory returns a builder that wraps each role's raw provider client
// with the timeout and metrics middleware.
func clientFactory(cfg *config.Config) (func(role string) (llm.Client, error), error) {
	switch cfg.Models.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("%s is not set", config.EnvOpenAIKey)
		}
	case config.ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("%s is not set", config.EnvAnthropicKey)
		}
	}

	return func(role string) (llm.Client, error) {
		model := cfg.Models.ForRole(role)
		var raw llm.Client
		var err error
		switch cfg.Models.Provider {
		case config.ProviderOpenAI:
			raw = openaic.New(cfg.OpenAIKey, model)
		case config.ProviderAnthropic:
			raw = anthropicc.New(cfg.AnthropicKey, model)
		case config.ProviderOllama:
			raw, err = ollamac.New(cfg.Models.OllamaHost, model)
			if err != nil {
				return nil, err
			}
		}
		wrapped := timeout.Wrap(raw, cfg.Models.RequestTimeout())
		return metrics.Wrap(wrapped, role), nil
	}, nil
}

func buildEmbedder(cfg *config.Config) (retrieval.Embedder, error) {
	switch cfg.Models.Provider {
	case config.ProviderOllama:
		return retrieval.NewOllamaEmbedder(cfg.Models.OllamaHost, cfg.Retrieval.EmbeddingModel)
	default:
		// The anthropic API has no embeddings endpoint; openai serves both
		// openai and anthropic completion configurations.
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("%s is required for embeddings", config.EnvOpenAIKey)
		}
		return retrieval.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.Retrieval.EmbeddingModel), nil
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, embedder retrieval.Embedder, logger *logx.Logger) (*retrieval.Index, error) {
	var cache *retrieval.Cache
	if cfg.Retrieval.CachePath != "" {
		var err error
		cache, err = retrieval.OpenCache(cfg.Retrieval.CachePath)
		if err != nil {
			return nil, logx.Wrap(err, "open retrieval cache")
		}
	}

	splitter := retrieval.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	builder := retrieval.NewCorpusBuilder(splitter, embedder, cache)

	start := time.Now()
	index, err := builder.Build(ctx, cfg.Retrieval.CorpusDir)
	if err != nil {
		return nil, logx.Wrap(err, "build corpus index")
	}
	logger.Info("corpus index built in %s (%d chunks)", time.Since(start).Round(time.Millisecond), index.Len())
	return index, nil
}

func serveMetrics(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}

// repl drives one session over stdin/stdout. Prompt decoration is skipped
// when stdin is not a TTY so piped transcripts stay clean.
func repl(ctx context.Context, orch *orchestrator.Orchestrator) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	sessionID, greeting := orch.CreateSession()
	fmt.Println(greeting)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print("you> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		result, err := orch.Advance(ctx, sessionID, line)
		if err != nil {
			fmt.Println("Something went wrong on our side; please try again.")
			logx.Errorf("turn failed: %v", err)
			continue
		}

		if result.Title != "" && interactive {
			fmt.Printf("[%s]\n", result.Title)
		}
		fmt.Println(result.Response)
		if result.PlannerFinal {
			fmt.Println("(structured plan above is ready for formatting)")
		}
	}
	return scanner.Err()
}
