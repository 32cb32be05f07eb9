package protocol

import "github.com/kgraphd/kgraphd/internal/types"

// Error codes map ToolError.Kind onto a small closed numeric space; callers
// on the wire branch on these rather than string-matching Message.
const (
	CodeMissingEntities     = 1
	CodeAlreadyExists       = 2
	CodeNotFound            = 3
	CodeInvalid             = 4
	CodeProviderUnavailable = 5
	CodeConflict            = 6
	CodeInternal            = 7

	// CodeUnknownTool and CodeBadRequest are protocol-layer errors that
	// never reach the graph tool layer at all (unrecognized tool name,
	// unparseable arguments).
	CodeUnknownTool = 100
	CodeBadRequest  = 101
)

func codeForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindMissingEntities:
		return CodeMissingEntities
	case types.KindAlreadyExists:
		return CodeAlreadyExists
	case types.KindNotFound:
		return CodeNotFound
	case types.KindInvalid:
		return CodeInvalid
	case types.KindProviderUnavailable:
		return CodeProviderUnavailable
	case types.KindConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// errorResponse converts any error returned by a tool method into a wire
// ErrorEnvelope, routing through AsToolError so a bare storage/context error
// still crosses the boundary structured rather than opaque.
func errorResponse(id string, err error) *Response {
	te := types.AsToolError(err)
	return ErrResult(id, codeForKind(te.Kind), te.Error())
}

// IsConflictCode reports whether code is the wire code for a Conflict
// ToolError — the one kind the adapter layer retries once (spec.md
// §4.6/§7) rather than surfacing immediately. Exported so a protocol
// adapter can make that retry decision without duplicating the
// Kind-to-code mapping codeForKind already owns.
func IsConflictCode(code int) bool {
	return code == CodeConflict
}
