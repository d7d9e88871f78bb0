package memory

import (
	"context"
	"strings"
	"unicode/utf8"
)

// TokenEstimator approximates the token cost of a piece of text.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens from the rune count.
type CharEstimator struct {
	CharsPerToken float64
}

// Estimate implements TokenEstimator. Non-empty text costs at least one token.
func (e CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	per := e.CharsPerToken
	if per <= 0 {
		per = 4
	}
	return int(float64(utf8.RuneCountInString(text))/per) + 1
}

// InjectionRequest describes a memory injection for one prompt.
type InjectionRequest struct {
	Recaller  *Recaller
	Query     string
	MaxFacts  int
	MaxTokens int
	Estimator TokenEstimator
}

// InjectMemory recalls the facts most relevant to the query and returns their
// contents in ranking order, suitable for inclusion in the system prompt.
//
// Returns nil if no recaller is configured or nothing relevant is found.
// Token budget is enforced: facts are added until MaxTokens is reached.
func InjectMemory(ctx context.Context, req InjectionRequest) ([]string, error) {
	if req.Recaller == nil {
		return nil, nil
	}
	if req.MaxFacts <= 0 || req.MaxTokens <= 0 {
		return nil, nil
	}
	estimator := req.Estimator
	if estimator == nil {
		estimator = CharEstimator{CharsPerToken: 4}
	}

	ranked, err := req.Recaller.Recall(ctx, req.Query, req.MaxFacts)
	if err != nil {
		return nil, err
	}

	var result []string
	used := 0
	for i := range ranked {
		content := ranked[i].Fact.Content
		tokens := estimator.Estimate(content)
		if used+tokens > req.MaxTokens {
			break
		}
		result = append(result, content)
		used += tokens
	}

	return result, nil
}

// FormatFacts formats a list of fact strings into a single prompt section.
// Returns an empty string if no facts are provided.
func FormatFacts(facts []string) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Things you remember about the user\n\n")
	for _, fact := range facts {
		b.WriteString("- ")
		b.WriteString(fact)
		b.WriteString("\n")
	}
	return b.String()
}
