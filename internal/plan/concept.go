package plan

import (
	"context"
	"fmt"
)

const conceptSystem = `You are an experienced tech entrepreneur with expertise in
mobile app business planning. When given an app idea, create a concise concept
document including:

1. Executive Summary
2. Problem Statement
3. Solution Overview
4. Target Market Analysis
5. Core Use Cases and User Stories
6. Development Roadmap

Format your response in Markdown with clear sections. Be concise but thorough,
focusing on practical, actionable insights.`

// Concept turns an app idea into a concept document.
type Concept struct{ Gen Generator }

func (p *Concept) Run(ctx context.Context, idea, appName string) (string, error) {
	prompt := fmt.Sprintf("Create a concept document for this mobile app idea (app name: %s): %s", appName, idea)
	out, err := p.Gen.Send(ctx, prompt, conceptSystem, false)
	if err != nil {
		return "", fmt.Errorf("concept phase: %w", err)
	}
	return out, nil
}
