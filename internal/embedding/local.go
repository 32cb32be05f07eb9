package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/kgraphd/kgraphd/internal/types"
)

// DefaultLocalModel is the default 384-dimension general-purpose English
// sentence embedder, loaded lazily on first use via the Ollama daemon
// running on the host.
const DefaultLocalModel = "nomic-embed-text"

const defaultLocalDimensions = 384

// LocalProvider embeds text via a locally hosted Ollama model. The client
// dials lazily on first Generate/BatchGenerate call; subsequent calls reuse
// the dialed client, mirroring the "load pretrained model lazily, reuse
// thereafter" contract.
type LocalProvider struct {
	model      string
	dimensions int

	once   sync.Once
	client *api.Client
	dialErr error
}

// NewLocalProvider constructs a LocalProvider for model. An empty model
// falls back to DefaultLocalModel.
func NewLocalProvider(model string) *LocalProvider {
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalProvider{model: model, dimensions: defaultLocalDimensions}
}

func (p *LocalProvider) ModelName() string { return p.model }
func (p *LocalProvider) Dimensions() int   { return p.dimensions }

func (p *LocalProvider) dial() (*api.Client, error) {
	p.once.Do(func() {
		p.client, p.dialErr = api.ClientFromEnvironment()
	})
	return p.client, p.dialErr
}

// Available does a short-timeout health check against the Ollama daemon,
// mirroring the sibling extractor's availability probe before a generate
// call is attempted against a model that may not be installed.
func (p *LocalProvider) Available(ctx context.Context) bool {
	client, err := p.dial()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = client.List(ctx)
	return err == nil
}

func (p *LocalProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.BatchGenerate(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *LocalProvider) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: dial ollama: %v", types.ErrProviderUnavailable, err)
	}

	resp, err := client.Embed(ctx, &api.EmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e
	}
	if len(out) > 0 {
		p.dimensions = len(out[0])
	}
	return out, nil
}

var _ Provider = (*LocalProvider)(nil)
