// Package plan runs the planning pipeline: an app idea is expanded into a
// concept document, narrowed to an MVP plan, then turned into architecture
// diagrams and a project skeleton. Each phase's output is written under
// planning/ and reloaded on rerun, so an interrupted run resumes where it
// stopped.
package plan

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"appforge/internal/extract"
	"appforge/internal/safeio"
)

// Generator produces one model response for a prompt. Satisfied by
// dispatch.Dispatcher.
type Generator interface {
	Send(ctx context.Context, prompt, system string, maximize bool) (string, error)
}

// Docs holds the raw markdown produced by a full planning run.
type Docs struct {
	Concept      string
	MVP          string
	Architecture string
	Skeleton     string
}

// Pipeline wires the planning phases to a project directory.
type Pipeline struct {
	gen    Generator
	fs     *safeio.SafeFS
	logger *zap.Logger
	lang   string
}

func NewPipeline(gen Generator, fs *safeio.SafeFS, lang string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{gen: gen, fs: fs, logger: logger, lang: lang}
}

const planningDir = "planning"

// Run executes every phase for the given idea, skipping phases whose
// document already exists under planning/.
func (p *Pipeline) Run(ctx context.Context, idea, appName string) (Docs, error) {
	var docs Docs
	var err error

	docs.Concept, err = p.phase(ctx, "Concept.md", func(ctx context.Context) (string, error) {
		return (&Concept{Gen: p.gen}).Run(ctx, idea, appName)
	})
	if err != nil {
		return docs, err
	}

	docs.MVP, err = p.phase(ctx, "MVP.md", func(ctx context.Context) (string, error) {
		return (&MVP{Gen: p.gen}).Run(ctx, docs.Concept)
	})
	if err != nil {
		return docs, err
	}

	arch := &Architecture{Gen: p.gen, Lang: p.lang}

	docs.Architecture, err = p.phase(ctx, "ArchitectureDiagrams.md", func(ctx context.Context) (string, error) {
		return arch.Diagrams(ctx, appName, docs.MVP)
	})
	if err != nil {
		return docs, err
	}
	if _, err := extract.SaveMarkdown(p.fs, docs.Architecture, "mermaid", p.logger); err != nil {
		p.logger.Warn("saving mermaid diagrams failed", zap.Error(err))
	}

	docs.Skeleton, err = p.phase(ctx, "Skeleton.md", func(ctx context.Context) (string, error) {
		return arch.Skeleton(ctx, appName, docs.MVP, docs.Architecture)
	})
	if err != nil {
		return docs, err
	}
	if _, err := extract.SaveMarkdown(p.fs, docs.Skeleton, p.lang, p.logger); err != nil {
		return docs, fmt.Errorf("plan: extracting skeleton: %w", err)
	}

	return docs, nil
}

// phase loads the cached document when present, otherwise runs the
// generator and persists its output.
func (p *Pipeline) phase(ctx context.Context, name string, run func(context.Context) (string, error)) (string, error) {
	rel := path.Join(planningDir, name)
	if b, err := p.fs.ReadFile(rel); err == nil && len(b) > 0 {
		p.logger.Info("loading existing planning document", zap.String("path", rel))
		return string(b), nil
	}

	p.logger.Info("running planning phase", zap.String("doc", name))
	out, err := run(ctx)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("plan: phase %s produced an empty document", name)
	}
	if err := p.fs.WriteFile(rel, []byte(out)); err != nil {
		return "", fmt.Errorf("plan: saving %s: %w", rel, err)
	}
	return out, nil
}
