// Package embedding holds the pluggable text-to-vector provider registry:
// a narrow four-member interface (model name, dimensions, single and batch
// generate) with two concrete variants, a locally hosted transformer model
// and a remote API-backed one, behind one process-global "current
// provider".
package embedding

import "context"

// Provider is deliberately narrow — resist adding provider-specific
// methods to it; anything else a variant needs stays private to that
// variant's own type.
type Provider interface {
	ModelName() string
	Dimensions() int
	Generate(ctx context.Context, text string) ([]float32, error)
	BatchGenerate(ctx context.Context, texts []string) ([][]float32, error)
}
