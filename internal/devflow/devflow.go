// Package devflow turns a generated project skeleton into full
// implementations. Files are ordered by type dependencies and generated
// in parallel waves, then a pluggable builder drives a repair loop over
// the result.
package devflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"appforge/internal/safeio"
)

// Generator produces one model response for a prompt. Satisfied by
// dispatch.Dispatcher.
type Generator interface {
	Send(ctx context.Context, prompt, system string, maximize bool) (string, error)
}

// Orchestrator develops every skeleton file under the project root.
type Orchestrator struct {
	gen      Generator
	fs       *safeio.SafeFS
	logger   *zap.Logger
	lang     string
	parallel int
}

// Result summarizes a development run.
type Result struct {
	Completed int
	Failed    []string
	Waves     int
}

func NewOrchestrator(gen Generator, fs *safeio.SafeFS, lang string, parallel int, logger *zap.Logger) *Orchestrator {
	if parallel <= 0 {
		parallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{gen: gen, fs: fs, logger: logger, lang: lang, parallel: parallel}
}

// Run scans the skeletons, orders them by dependency, and generates each
// file's implementation wave by wave. A failed file is recorded and its
// skeleton left in place; later waves still run.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	skeletons, err := ScanSkeletons(o.fs, o.lang)
	if err != nil {
		return Result{}, fmt.Errorf("devflow: scanning skeletons: %w", err)
	}
	if len(skeletons) == 0 {
		return Result{}, fmt.Errorf("devflow: no %s skeleton files under %s", o.lang, o.fs.Root())
	}
	byPath := make(map[string]Skeleton, len(skeletons))
	for _, sk := range skeletons {
		byPath[sk.Path] = sk
	}

	graph := BuildGraph(skeletons)
	waves := graph.Waves()
	o.logger.Info("development queue ready",
		zap.Int("files", graph.Len()),
		zap.Int("waves", len(waves)))

	res := Result{Waves: len(waves)}
	var failed []string
	for i, wave := range waves {
		o.logger.Info("starting wave",
			zap.Int("wave", i+1),
			zap.Int("files", len(wave)))

		p := pool.New().WithContext(ctx).WithMaxGoroutines(o.parallel)
		resultCh := make(chan string, len(wave))
		for _, path := range wave {
			sk := byPath[path]
			p.Go(func(ctx context.Context) error {
				if err := o.developFile(ctx, sk); err != nil {
					o.logger.Error("file development failed",
						zap.String("file", sk.Path), zap.Error(err))
					resultCh <- sk.Path
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return res, err
		}
		close(resultCh)
		for path := range resultCh {
			failed = append(failed, path)
		}
	}
	res.Completed = graph.Len() - len(failed)
	res.Failed = failed
	return res, nil
}

func (o *Orchestrator) developFile(ctx context.Context, sk Skeleton) error {
	skeleton, err := o.fs.ReadFile(sk.Path)
	if err != nil {
		return err
	}
	prompt := o.developmentPrompt(sk.Path, string(skeleton))
	response, err := o.gen.Send(ctx, prompt, systemPromptFor(sk.Category, o.lang), true)
	if err != nil {
		return err
	}
	code := extractCode(response, o.lang)
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty implementation for %s", sk.Path)
	}
	return o.fs.WriteFile(sk.Path, []byte(code+"\n"))
}

func (o *Orchestrator) developmentPrompt(path, skeleton string) string {
	return fmt.Sprintf(`Implement the following %[1]s file with complete functionality.

File: %[2]s

Current skeleton:
%[3]s%[1]s
%[4]s
%[3]s

Keep the same type structure, property names and method signatures. Fill in
every stub and TODO, add error handling, and integrate with the other
components referenced by the skeleton.

Return ONLY the complete %[1]s file, in a single fenced %[1]s code block.`,
		o.lang, path, "```", skeleton)
}

const baseDevSystem = `You are an expert mobile developer. Implement the
provided %s file with full functionality based on its skeleton. Use modern
language idioms, proper error handling, and dependency injection. Do not add
new public APIs beyond the skeleton unless strictly required.`

// systemPromptFor appends role-specific guidance for the file's category.
func systemPromptFor(category, lang string) string {
	base := fmt.Sprintf(baseDevSystem, lang)
	switch category {
	case "view":
		return base + `
For views: keep business logic out of the view layer, break complex views
into small components, and keep state bindings minimal.`
	case "viewmodel":
		return base + `
For view models: expose observable state for the view, keep models separate,
and keep all business logic here rather than in views.`
	case "service":
		return base + `
For services: make remote calls asynchronous, propagate errors to callers,
and keep the public interface small.`
	case "repository":
		return base + `
For repositories: provide clean abstractions over persistence, handle
storage failures explicitly, and cache where appropriate.`
	default:
		return base
	}
}

// extractCode pulls the fenced code block for lang out of a response,
// falling back to the raw response when the model skipped the fence.
func extractCode(response, lang string) string {
	re := regexp.MustCompile(`(?s)` + "```" + `(?i:` + regexp.QuoteMeta(strings.ToLower(lang)) + `)\s*(.*?)` + "```")
	if m := re.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}
