// Package llm generates answers with a hosted chat model.
package llm

import "context"

// DefaultTemperature is the sampling temperature used for answers.
const DefaultTemperature = 0.7

// Completer turns a single prompt into a single completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
	ModelName() string
}
