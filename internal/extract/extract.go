// Package extract pulls generated source files out of markdown responses.
// Responses are expected to carry one "## relative/path" section per file,
// each holding a fenced code block in the project language.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"appforge/internal/safeio"
)

// File is one extracted source file.
type File struct {
	Path    string
	Content string
}

var sectionRe = regexp.MustCompile(`(?m)^##\s+`)

// Files parses markdown into files. Sections without a fenced block in
// lang are skipped; the language match is case-insensitive.
func Files(markdown, lang string) []File {
	codeRe := regexp.MustCompile(`(?s)` + "```" + `(?i:` + regexp.QuoteMeta(strings.ToLower(lang)) + `)\s*(.*?)` + "```")

	var out []File
	sections := sectionRe.Split(markdown, -1)
	for _, section := range sections[1:] {
		lines := strings.SplitN(strings.TrimSpace(section), "\n", 2)
		if len(lines) < 2 {
			continue
		}
		rel := strings.TrimSpace(strings.TrimPrefix(lines[0], "/"))
		if rel == "" {
			continue
		}
		m := codeRe.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}
		out = append(out, File{Path: rel, Content: strings.TrimSpace(m[1])})
	}
	return out
}

// Save writes files under fs, returning how many were written. A path
// that fails to resolve aborts the save.
func Save(fs *safeio.SafeFS, files []File, logger *zap.Logger) (int, error) {
	count := 0
	for _, f := range files {
		if err := fs.WriteFile(f.Path, []byte(f.Content+"\n")); err != nil {
			return count, fmt.Errorf("extract: write %s: %w", f.Path, err)
		}
		count++
	}
	if logger != nil {
		logger.Info("saved extracted files", zap.Int("count", count))
	}
	return count, nil
}

// SaveMarkdown extracts files for lang from markdown and writes them
// under fs in one step.
func SaveMarkdown(fs *safeio.SafeFS, markdown, lang string, logger *zap.Logger) (int, error) {
	return Save(fs, Files(markdown, lang), logger)
}
