package devflow

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"appforge/internal/extract"
)

// Diagnostic is one message from a project build.
type Diagnostic struct {
	File     string
	Line     int
	Severity string // "error" or "warning"
	Message  string
}

// Builder compiles the generated project and reports diagnostics. The
// concrete toolchain (xcodebuild, gradle, ...) lives behind this interface.
type Builder interface {
	Build(ctx context.Context, projectDir string) ([]Diagnostic, error)
}

const repairSystem = `You are an expert debugger. You receive a project's
complete source code and the compiler errors from its last build. Fix every
error. Return only the files that need changes, one "## relative/path" section
per file, each containing a single fenced code block with the full corrected
file contents.`

// Repair builds the project and feeds compiler errors back to the model
// until the build is clean or maxPasses is exhausted. Returns the number
// of passes run and whether the final build succeeded.
func (o *Orchestrator) Repair(ctx context.Context, builder Builder, maxPasses int) (int, bool, error) {
	if builder == nil || maxPasses <= 0 {
		return 0, true, nil
	}
	for pass := 1; pass <= maxPasses; pass++ {
		diags, err := builder.Build(ctx, o.fs.Root())
		if err != nil {
			return pass, false, fmt.Errorf("devflow: build pass %d: %w", pass, err)
		}
		errs := filterErrors(diags)
		if len(errs) == 0 {
			o.logger.Info("build clean", zap.Int("pass", pass))
			return pass, true, nil
		}
		o.logger.Warn("build failed, requesting fixes",
			zap.Int("pass", pass),
			zap.Int("errors", len(errs)))

		allCode, err := o.collectSource()
		if err != nil {
			return pass, false, err
		}
		response, err := o.gen.Send(ctx, repairPrompt(errs, allCode, o.lang), repairSystem, true)
		if err != nil {
			return pass, false, err
		}
		if _, err := extract.SaveMarkdown(o.fs, response, o.lang, o.logger); err != nil {
			return pass, false, fmt.Errorf("devflow: applying fixes: %w", err)
		}
	}

	diags, err := builder.Build(ctx, o.fs.Root())
	if err != nil {
		return maxPasses, false, fmt.Errorf("devflow: final build: %w", err)
	}
	return maxPasses, len(filterErrors(diags)) == 0, nil
}

func filterErrors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == "error" {
			out = append(out, d)
		}
	}
	return out
}

// collectSource concatenates every project source file, each preceded by
// a comment naming its relative path.
func (o *Orchestrator) collectSource() (string, error) {
	ext := o.lang
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var b strings.Builder
	err := o.fs.Walk(func(rel string, _ fs.FileInfo) error {
		if !strings.HasSuffix(rel, ext) || strings.HasPrefix(rel, planningPrefix) {
			return nil
		}
		content, err := o.fs.ReadFile(rel)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "// %s\n%s\n\n", rel, content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("devflow: collecting source: %w", err)
	}
	return b.String(), nil
}

func repairPrompt(errs []Diagnostic, allCode, lang string) string {
	var b strings.Builder
	b.WriteString("The project fails to build with these errors:\n\n")
	for _, d := range errs {
		fmt.Fprintf(&b, "- %s:%d: %s\n", d.File, d.Line, d.Message)
	}
	fmt.Fprintf(&b, "\nComplete %s source:\n\n%s\n", lang, allCode)
	b.WriteString("\nFix every error listed above.")
	return b.String()
}
