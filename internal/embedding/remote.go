package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kgraphd/kgraphd/internal/types"
)

// errAPIKeyRequired mirrors the teacher's remote-client precondition: a
// remote provider with no resolvable key can never succeed, so fail fast
// at construction rather than on first Generate call.
var errAPIKeyRequired = errors.New("embedding: remote provider requires an API key")

// RemoteProvider calls a remote embeddings endpoint over HTTP, one request
// per Generate/BatchGenerate call. Per the provider contract, retries
// beyond surfacing the remote error are not this type's responsibility —
// that's the protocol adapter's job (a single Conflict retry at the
// transport layer), not the provider's.
type RemoteProvider struct {
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	httpClient *http.Client

	// single coalesces concurrent Generate calls for the same text onto one
	// HTTP round trip, the common case when several search_entities_semantic
	// / search_hybrid calls for the same query string arrive close together.
	single singleflight.Group
}

// RemoteProviderConfig holds the construction parameters for a
// RemoteProvider. The KG_EMBEDDINGS_API_KEY environment variable, when set,
// takes precedence over APIKey, mirroring the teacher's ANTHROPIC_API_KEY
// env-var-takes-precedence convention for its own remote client.
type RemoteProviderConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	Dimensions int
}

// NewRemoteProvider constructs a RemoteProvider, taking the API key from the
// KG_EMBEDDINGS_API_KEY environment variable when it is set and from
// cfg.APIKey otherwise.
func NewRemoteProvider(cfg RemoteProviderConfig) (*RemoteProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("KG_EMBEDDINGS_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(cfg.APIKey)
	}
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding: remote provider requires an endpoint")
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}
	return &RemoteProvider{
		apiKey:     apiKey,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		dimensions: dims,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *RemoteProvider) ModelName() string { return p.model }
func (p *RemoteProvider) Dimensions() int   { return p.dimensions }

func (p *RemoteProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := p.single.Do(p.model+"\x00"+text, func() (any, error) {
		vecs, err := p.BatchGenerate(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

type remoteEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type remoteEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *RemoteProvider) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(remoteEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: remote embeddings endpoint returned %d: %s", types.ErrProviderUnavailable, resp.StatusCode, body)
	}

	var out remoteEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrProviderUnavailable, err)
	}
	if len(out.Embeddings) > 0 {
		p.dimensions = len(out.Embeddings[0])
	}
	return out.Embeddings, nil
}

var _ Provider = (*RemoteProvider)(nil)
