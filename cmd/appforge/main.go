// Command appforge generates a mobile app from an idea: planning documents,
// a project skeleton, then dependency-ordered file implementations, all
// through a rate-limited retrying dispatcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"appforge/internal/artifact"
	"appforge/internal/cache"
	"appforge/internal/config"
	"appforge/internal/devflow"
	"appforge/internal/dispatch"
	"appforge/internal/llmclient"
	"appforge/internal/logger"
	"appforge/internal/metrics"
	"appforge/internal/plan"
	"appforge/internal/safeio"
	"appforge/internal/usage"
)

func main() {
	idea := flag.String("idea", "", "one-paragraph description of the app to build")
	name := flag.String("name", "", "app name (defaults to a name derived from the output dir)")
	outDir := flag.String("out", "out", "output directory for generated projects")
	provider := flag.String("provider", "", "llm provider: anthropic, gemini or openai")
	model := flag.String("model", "", "model id (provider default when empty)")
	phase := flag.String("phase", "all", "phase to run: plan, develop, repair or all")
	parallel := flag.Int("parallel", 0, "parallel file generations per wave")
	lang := flag.String("lang", "swift", "source language of the generated app")
	buildCmd := flag.String("build-cmd", "", "build command for the repair loop, e.g. \"xcodebuild build\"")
	repairPasses := flag.Int("repair-passes", 3, "max build-and-fix passes")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *parallel > 0 {
		cfg.Parallel = *parallel
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	if *idea == "" && *phase != "repair" && *phase != "develop" {
		zl.Fatal("--idea is required")
	}
	appName := *name
	if appName == "" {
		appName = deriveAppName(*idea)
	}

	metrics.RegisterGenerationMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, cfg)
	if err != nil {
		zl.Fatal("creating provider client", zap.Error(err))
	}
	defer client.Close()

	dispatcher := dispatch.New(client, dispatch.Config{
		RateLimit: dispatch.RateLimiterConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			TokensPerMinute:   cfg.TokensPerMinute,
		},
		Retry: dispatch.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseWait:   cfg.BaseWait(),
			MaxWait:    cfg.MaxWait(),
		},
	}, zl)

	respCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		zl.Fatal("creating response cache", zap.Error(err))
	}
	ledger := usage.Open(cfg.UsageLedger, cfg.UsageStoreDSN)
	defer ledger.Close()

	gen := &instrumentedGen{
		dispatcher: dispatcher,
		cache:      respCache,
		ledger:     ledger,
		provider:   cfg.Provider,
		model:      client.Name(),
	}

	projectFS, err := safeio.NewSafeFS(filepath.Join(*outDir, appName))
	if err != nil {
		zl.Fatal("creating project directory", zap.Error(err))
	}
	zl.Info("project root ready", zap.String("dir", projectFS.Root()))

	runPlan := *phase == "all" || *phase == "plan"
	runDevelop := *phase == "all" || *phase == "develop"
	runRepair := (*phase == "all" && *buildCmd != "") || *phase == "repair"

	if runPlan {
		pipeline := plan.NewPipeline(gen, projectFS, *lang, zl)
		if _, err := pipeline.Run(ctx, *idea, appName); err != nil {
			zl.Fatal("planning failed", zap.Error(err))
		}
	}

	orch := devflow.NewOrchestrator(gen, projectFS, *lang, cfg.Parallel, zl)

	if runDevelop {
		res, err := orch.Run(ctx)
		if err != nil {
			zl.Fatal("development failed", zap.Error(err))
		}
		zl.Info("development finished",
			zap.Int("completed", res.Completed),
			zap.Strings("failed", res.Failed),
			zap.Int("waves", res.Waves))
	}

	if runRepair {
		if *buildCmd == "" {
			zl.Fatal("--build-cmd is required for the repair phase")
		}
		builder := &devflow.CommandBuilder{Command: strings.Fields(*buildCmd)}
		passes, clean, err := orch.Repair(ctx, builder, *repairPasses)
		if err != nil {
			zl.Fatal("repair loop failed", zap.Error(err))
		}
		zl.Info("repair loop finished", zap.Int("passes", passes), zap.Bool("clean", clean))
	}

	if cfg.Artifact.Enabled {
		store, err := artifact.NewStore(artifact.Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			zl.Fatal("creating artifact store", zap.Error(err))
		}
		runID := fmt.Sprintf("%s-%s", appName, time.Now().UTC().Format("20060102-150405"))
		n, err := store.UploadTree(ctx, runID, projectFS)
		if err != nil {
			zl.Error("artifact upload failed", zap.Error(err))
		} else {
			zl.Info("artifacts uploaded", zap.String("run_id", runID), zap.Int("files", n))
		}
	}

	if totals, err := ledger.Totals(); err == nil {
		zl.Info("usage totals",
			zap.Int64("requests", totals.Requests),
			zap.Int64("tokens", totals.Tokens),
			zap.Int64("errors", totals.Errors))
	}
}

func newClient(ctx context.Context, cfg *config.Config) (llmclient.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return llmclient.NewAnthropicClient("", cfg.Model)
	case "gemini":
		return llmclient.NewGeminiClient(ctx, cfg.Model)
	case "openai":
		return llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// instrumentedGen wraps the dispatcher with the response cache and the
// usage ledger. Cache hits skip both the rate limiter and the ledger.
type instrumentedGen struct {
	dispatcher *dispatch.Dispatcher
	cache      *cache.Cache
	ledger     *usage.Ledger
	provider   string
	model      string
}

func (g *instrumentedGen) Send(ctx context.Context, prompt, system string, maximize bool) (string, error) {
	key := cache.Key(g.provider, g.model, system, prompt, maximize)
	if resp, ok := g.cache.Get(key); ok {
		return resp.Text, nil
	}
	out, err := g.dispatcher.Send(ctx, prompt, system, maximize)

	// Ledger failures never fail the generation.
	tokens := llmclient.EstimateTokens(prompt) + llmclient.EstimateTokens(system)
	_ = g.ledger.Record(g.model, int64(tokens), err != nil)
	if err != nil {
		return "", err
	}
	g.cache.Put(key, cache.Response{Text: out, Provider: g.provider})
	return out, nil
}

func deriveAppName(idea string) string {
	words := strings.Fields(idea)
	if len(words) == 0 {
		return "App"
	}
	n := len(words)
	if n > 2 {
		n = 2
	}
	var b strings.Builder
	for _, w := range words[:n] {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + strings.ToLower(w[1:]))
	}
	if b.Len() == 0 {
		return "App"
	}
	return b.String()
}
