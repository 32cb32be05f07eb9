package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/types"
)

// handlerFunc decodes a tool's raw arguments, calls the matching *graph.Graph
// method, and returns its result (or error) as an opaque value ready for
// TextResult/errorResponse.
type handlerFunc func(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error)

// handlers is the tagged dispatch table spec.md §4.6's design notes call
// for: one entry per tool_name, each a thin argument-decoding wrapper
// around the corresponding *graph.Graph method. Every one of spec.md §4.4's
// thirteen tools has an entry here; adding a fourteenth tool means adding
// one line, not touching adapter code.
var handlers = map[string]handlerFunc{
	"create_entities":          handleCreateEntities,
	"create_relations":         handleCreateRelations,
	"add_observations":         handleAddObservations,
	"create_subgraph":          handleCreateSubgraph,
	"delete_entities":          handleDeleteEntities,
	"delete_relations":         handleDeleteRelations,
	"read_graph":               handleReadGraph,
	"get_stats":                handleGetStats,
	"get_server_info":          handleGetServerInfo,
	"search_nodes":             handleSearchNodes,
	"search_entities_semantic": handleSearchEntitiesSemantic,
	"search_hybrid":            handleSearchHybrid,
	"generate_embeddings":      handleGenerateEmbeddings,
	"configure_embeddings":     handleConfigureEmbeddings,
}

// Dispatch decodes req.Params.Arguments for the named tool, invokes it
// against g, and builds the matching Response envelope. It never panics on
// malformed input: an unknown tool name or a bad arguments payload becomes
// a CodeUnknownTool/CodeBadRequest error response, same as any tool-layer
// failure.
func Dispatch(ctx context.Context, g *graph.Graph, req Request) *Response {
	if req.Method != "" && req.Method != "tools/call" {
		return ErrResult(req.ID, CodeBadRequest, fmt.Sprintf("unsupported method %q", req.Method))
	}

	h, ok := handlers[req.Params.Name]
	if !ok {
		return ErrResult(req.ID, CodeUnknownTool, fmt.Sprintf("unknown tool %q", req.Params.Name))
	}

	result, err := h(ctx, g, req.Params.Arguments)
	if err != nil {
		if ve, ok := err.(*argDecodeError); ok {
			return ErrResult(req.ID, CodeBadRequest, ve.Error())
		}
		return errorResponse(req.ID, err)
	}

	resp, err := TextResult(req.ID, result)
	if err != nil {
		return ErrResult(req.ID, CodeInternal, err.Error())
	}
	return resp
}

// argDecodeError distinguishes "arguments didn't parse" from a tool-layer
// ToolError so Dispatch can map it to CodeBadRequest instead of CodeInternal.
type argDecodeError struct{ err error }

func (e *argDecodeError) Error() string { return fmt.Sprintf("invalid arguments: %v", e.err) }

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &argDecodeError{err: err}
	}
	return nil
}

type createEntitiesArgs struct {
	Entities []types.NewEntityInput `json:"entities"`
}

func handleCreateEntities(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args createEntitiesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.CreateEntities(ctx, args.Entities)
}

type createRelationsArgs struct {
	Relations    []types.NewRelationInput `json:"relations"`
	ExternalRefs []string                 `json:"external_refs"`
}

func handleCreateRelations(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args createRelationsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.CreateRelations(ctx, args.Relations, args.ExternalRefs)
}

type addObservationsArgs struct {
	EntityName   string   `json:"entity_name"`
	Observations []string `json:"observations"`
	ExternalRefs []string `json:"external_refs"`
}

func handleAddObservations(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args addObservationsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.AddObservations(ctx, args.EntityName, args.Observations, args.ExternalRefs)
}

type createSubgraphArgs struct {
	Entities                []types.NewEntityInput          `json:"entities"`
	Relations               []types.NewRelationInput        `json:"relations"`
	ObservationsForExisting []types.ObservationsForExisting `json:"observations_for_existing"`
}

func handleCreateSubgraph(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args createSubgraphArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.CreateSubgraph(ctx, args.Entities, args.Relations, args.ObservationsForExisting)
}

type deleteEntitiesArgs struct {
	Names []string `json:"names"`
}

func handleDeleteEntities(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args deleteEntitiesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.DeleteEntities(ctx, args.Names)
}

type deleteRelationsArgs struct {
	Relations []types.NewRelationInput `json:"relations"`
}

func handleDeleteRelations(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args deleteRelationsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.DeleteRelations(ctx, args.Relations)
}

func handleReadGraph(ctx context.Context, g *graph.Graph, _ json.RawMessage) (any, error) {
	return g.ReadGraph(ctx)
}

func handleGetStats(ctx context.Context, g *graph.Graph, _ json.RawMessage) (any, error) {
	return g.GetStats(ctx)
}

func handleGetServerInfo(ctx context.Context, g *graph.Graph, _ json.RawMessage) (any, error) {
	return g.GetServerInfo(ctx)
}

// K/Threshold/VectorWeight are pointers so an omitted argument decodes to
// nil and falls back to config.Vector's defaults inside the Graph method,
// rather than to Go's zero value (0, which is a meaningful explicit value
// for both threshold and vector_weight, not "unset").
type searchNodesArgs struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

func handleSearchNodes(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args searchNodesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.SearchNodes(ctx, args.Query, args.K)
}

type searchSemanticArgs struct {
	Query     string   `json:"query"`
	K         *int     `json:"k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

func handleSearchEntitiesSemantic(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args searchSemanticArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.SearchEntitiesSemantic(ctx, args.Query, args.K, args.Threshold)
}

type searchHybridArgs struct {
	Query        string   `json:"query"`
	K            *int     `json:"k,omitempty"`
	VectorWeight *float64 `json:"vector_weight,omitempty"`
}

func handleSearchHybrid(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args searchHybridArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.SearchHybrid(ctx, args.Query, args.K, args.VectorWeight)
}

type generateEmbeddingsArgs struct {
	EntityNames []string `json:"entity_ids"`
	Force       bool     `json:"force"`
	BatchSize   int      `json:"batch_size"`
}

func handleGenerateEmbeddings(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args generateEmbeddingsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.GenerateEmbeddings(ctx, args.EntityNames, args.Force, args.BatchSize)
}

type configureEmbeddingsArgs struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

func handleConfigureEmbeddings(ctx context.Context, g *graph.Graph, raw json.RawMessage) (any, error) {
	var args configureEmbeddingsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return g.ConfigureEmbeddings(ctx, args.Provider, args.Model, args.APIKey)
}
