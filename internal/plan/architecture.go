package plan

import (
	"context"
	"fmt"
)

const diagramsSystem = `You are a software architect designing a mobile app.
Given an MVP plan, produce architecture diagrams as fenced mermaid code blocks:
a class diagram, an entity-relationship diagram, and a high-level flow diagram.
Put each diagram in its own "## <name>.mmd" section and follow it with a short
explanation. Format your response in Markdown.`

const skeletonSystem = `You are a software architect. Given an MVP plan and
architecture diagrams, produce the complete file skeleton for the project:
every source file with its type declarations, property and method signatures,
and an empty or stub body. Use one "## relative/path/File.%[1]s" section per
file, each containing exactly one fenced %[1]s code block. Do not implement
method bodies yet.`

// Architecture produces diagrams and a file skeleton from the MVP plan.
type Architecture struct {
	Gen  Generator
	Lang string // source language of the generated app, e.g. "swift"
}

func (p *Architecture) Diagrams(ctx context.Context, appName, mvp string) (string, error) {
	prompt := fmt.Sprintf("Design the architecture for %s based on this MVP plan:\n\n%s", appName, mvp)
	out, err := p.Gen.Send(ctx, prompt, diagramsSystem, false)
	if err != nil {
		return "", fmt.Errorf("architecture diagrams phase: %w", err)
	}
	return out, nil
}

// Skeleton asks for the full project skeleton. This is the largest single
// response of a run, so the output ceiling is maximized.
func (p *Architecture) Skeleton(ctx context.Context, appName, mvp, diagrams string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate the project skeleton for %s.\n\nMVP plan:\n\n%s\n\nArchitecture diagrams:\n\n%s",
		appName, mvp, diagrams)
	out, err := p.Gen.Send(ctx, prompt, fmt.Sprintf(skeletonSystem, p.Lang), true)
	if err != nil {
		return "", fmt.Errorf("architecture skeleton phase: %w", err)
	}
	return out, nil
}
