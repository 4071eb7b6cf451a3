package devflow

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// diagnosticRe matches the "path:line[:col]: severity: message" format used
// by most compilers, xcodebuild included.
var diagnosticRe = regexp.MustCompile(`(?m)^(.*?):(\d+)(?::\d+)?: (warning|error): (.*)$`)

// CommandBuilder runs an external build command in the project directory
// and parses compiler diagnostics from its combined output.
type CommandBuilder struct {
	Command []string
}

func (b *CommandBuilder) Build(ctx context.Context, projectDir string) ([]Diagnostic, error) {
	if len(b.Command) == 0 {
		return nil, fmt.Errorf("devflow: build command is empty")
	}
	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...)
	cmd.Dir = projectDir
	out, runErr := cmd.CombinedOutput()

	diags := ParseDiagnostics(string(out))
	if runErr != nil && len(diags) == 0 {
		// Build failed for a reason other than compiler errors.
		return nil, fmt.Errorf("devflow: build command failed: %w\n%s", runErr, strings.TrimSpace(string(out)))
	}
	return diags, nil
}

// ParseDiagnostics extracts compiler diagnostics from raw build output.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, m := range diagnosticRe.FindAllStringSubmatch(output, -1) {
		line, err := strconv.Atoi(m[2])
		if err != nil {
			line = 0
		}
		diags = append(diags, Diagnostic{
			File:     m[1],
			Line:     line,
			Severity: m[3],
			Message:  strings.TrimSpace(m[4]),
		})
	}
	return diags
}
