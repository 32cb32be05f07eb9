// Package stdio implements the stdio protocol adapter (C6): one JSON tool
// envelope per input line on stdin, one JSON response per output line on
// stdout, processed strictly in order. Used when the service is spawned as
// a child process by a host that prefers pipe transport over HTTP.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/protocol"
)

// maxLineSize bounds a single request line, generous for the largest
// plausible create_subgraph batch without letting a malformed client OOM
// the process via bufio.Scanner's internal buffer growth.
const maxLineSize = 32 * 1024 * 1024

// Options configures Run.
type Options struct {
	Graph            *graph.Graph
	In               io.Reader
	Out              io.Writer
	RequestTimeout   time.Duration
	EmbeddingTimeout time.Duration
	Logger           *slog.Logger
}

// Run reads tool-call envelopes from opts.In, one per line, dispatches each
// in order against opts.Graph, and writes one response envelope per line to
// opts.Out. It returns when opts.In reaches EOF or ctx is canceled.
//
// Ordering is enforced by construction: Run is single-threaded over the
// scanner loop, so a request is never dispatched until the previous one's
// response has been written, matching spec.md §5's "strictly in order"
// guarantee for the stdio adapter.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.EmbeddingTimeout <= 0 {
		opts.EmbeddingTimeout = 5 * time.Minute
	}

	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(opts.Out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(protocol.ErrResult("", protocol.CodeBadRequest, fmt.Sprintf("invalid request line: %v", err))); encErr != nil {
				opts.Logger.Error("stdio: write response", "error", encErr)
			}
			continue
		}

		timeout := opts.RequestTimeout
		if req.Params.Name == "generate_embeddings" {
			timeout = opts.EmbeddingTimeout
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp := protocol.Dispatch(reqCtx, opts.Graph, req)
		cancel()

		if err := enc.Encode(resp); err != nil {
			opts.Logger.Error("stdio: write response", "error", err)
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio: read loop: %w", err)
	}
	return nil
}
