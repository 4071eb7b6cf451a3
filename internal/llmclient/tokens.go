package llmclient

// EstimateTokens gives a rough token count for text using the 4-chars-per-token
// heuristic. It intentionally over- or under-counts a little; the rate limiter
// only needs a stable, cheap estimate.
func EstimateTokens(text string) int {
	return len(text) / 4
}
