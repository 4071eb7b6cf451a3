package plan

import (
	"context"
	"fmt"
)

const mvpSystem = `You are an expert project manager specializing in mobile app
development. Given a concept document, select the smallest coherent feature set
for a first shippable version. For each selected feature explain in one line why
it is in scope; list deferred features separately. Format your response in
Markdown.`

// MVP narrows a concept document down to a first-version feature set.
type MVP struct{ Gen Generator }

func (p *MVP) Run(ctx context.Context, concept string) (string, error) {
	prompt := "Select the MVP feature set for the app described by this concept document:\n\n" + concept
	out, err := p.Gen.Send(ctx, prompt, mvpSystem, false)
	if err != nil {
		return "", fmt.Errorf("mvp phase: %w", err)
	}
	return out, nil
}
