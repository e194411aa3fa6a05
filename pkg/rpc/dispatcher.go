package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/memscribe/memscribe/pkg/buffer"
	"github.com/memscribe/memscribe/pkg/memory"
)

// Dispatcher routes JSON-RPC requests to the Memory Core facade. It is
// shared across both transports; callers supply the already-resolved
// userID for each request (the HTTP transport resolves it via bearer
// auth, the stdio transport via local OS user trust, per spec).
type Dispatcher struct {
	Memory     *memory.Service
	Backfiller *buffer.Backfiller
	Log        *zap.Logger

	usersMu sync.Mutex
	users   map[string]struct{}
}

func NewDispatcher(svc *memory.Service, backfiller *buffer.Backfiller, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{Memory: svc, Backfiller: backfiller, Log: log, users: make(map[string]struct{})}
}

// KnownUsers returns every userID this dispatcher has served at least
// one request for. The Store has no list-all-tenants method (spec.md's
// data model names no such operation), so this is the only source the
// process has for which tenants the periodic backfill sweep (§4.4's
// "update_missing_embeddings") should cover proactively, rather than
// only on an explicit per-tenant request.
func (d *Dispatcher) KnownUsers() []string {
	d.usersMu.Lock()
	defer d.usersMu.Unlock()
	out := make([]string, 0, len(d.users))
	for u := range d.users {
		out = append(out, u)
	}
	return out
}

func (d *Dispatcher) rememberUser(userID string) {
	if userID == "" {
		return
	}
	d.usersMu.Lock()
	d.users[userID] = struct{}{}
	d.usersMu.Unlock()
}

// Dispatch handles one decoded Request for userID, returning nil for
// notifications (no id, no response body). Every failure — a bad
// method name, bad arguments, or an internal error from the Memory
// Core — becomes a well-formed Response; nothing here panics or
// returns a bare error to the caller, per the "never throw to the
// transport" rule.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, req *Request) *Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"", nil)
	}

	d.rememberUser(userID)
	result, err := d.route(ctx, userID, req.Method, req.Params)

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return errorResponse(req.ID, err.Code, err.Message, err.Data)
	}
	return resultResponse(req.ID, result)
}

func (d *Dispatcher) route(ctx context.Context, userID, method string, params json.RawMessage) (any, *Error) {
	switch method {
	case "initialize":
		return map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "memscribe", "version": "1.0.0"},
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
		}, nil
	case "initialized":
		return map[string]any{}, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return map[string]any{"tools": toolDescriptors}, nil
	case "prompts/list":
		return map[string]any{"prompts": []any{}}, nil
	case "resources/list":
		return map[string]any{"resources": []any{}}, nil
	case "tools/call":
		return d.dispatchToolCall(ctx, userID, params)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", method)}
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (d *Dispatcher) dispatchToolCall(ctx context.Context, userID string, raw json.RawMessage) (any, *Error) {
	var call toolCallParams
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}

	switch call.Name {
	case "store_memory":
		var args storeMemoryArgs
		if e := decodeAndValidate(call.Arguments, &args); e != nil {
			return nil, e
		}
		return envelopeToResult(d.Memory.AddMemory(ctx, userID, args.toRequest()))

	case "recall_memories":
		var args recallMemoriesArgs
		if e := decodeAndValidate(call.Arguments, &args); e != nil {
			return nil, e
		}
		return envelopeToResult(d.Memory.SearchMemories(ctx, userID, args.toRequest()))

	case "get_memory":
		var args getMemoryArgs
		if e := decodeAndValidate(call.Arguments, &args); e != nil {
			return nil, e
		}
		return envelopeToResult(d.Memory.GetMemory(ctx, userID, args.ID))

	case "update_memory":
		var args updateMemoryArgs
		if e := decodeAndValidate(call.Arguments, &args); e != nil {
			return nil, e
		}
		return envelopeToResult(d.Memory.UpdateMemory(ctx, userID, args.ID, args.toRequest()))

	case "delete_memory":
		var args getMemoryArgs
		if e := decodeAndValidate(call.Arguments, &args); e != nil {
			return nil, e
		}
		return envelopeToResult(d.Memory.DeleteMemory(ctx, userID, args.ID))

	case "get_memory_stats":
		return envelopeToResult(d.Memory.GetStatistics(ctx, userID))

	case "update_missing_embeddings":
		return envelopeToResult(d.Memory.UpdateMissingEmbeddings(ctx, userID, d.Backfiller))

	case "get_daily_costs":
		var args getDailyCostsArgs
		if len(call.Arguments) > 0 {
			if e := decodeAndValidate(call.Arguments, &args); e != nil {
				return nil, e
			}
		}
		return envelopeToResult(d.Memory.GetDailyCosts(ctx, userID, args.Days))

	default:
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool %q", call.Name)}
	}
}

// decodeAndValidate unmarshals raw tool arguments into dst and runs
// struct validation, both mapping failures to -32602 per spec.md §4.8
// ("tools/call arguments MUST be validated ... before dispatch").
func decodeAndValidate(raw json.RawMessage, dst any) *Error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid arguments: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid arguments: " + err.Error()}
	}
	return nil
}

// envelopeToResult converts a Memory Core Envelope into either a
// result value or an RPC Error, depending on its status.
func envelopeToResult(env memory.Envelope) (any, *Error) {
	if env.Status == memory.StatusError {
		return nil, toRPCError(env.Error, env.Message)
	}
	return env.Data, nil
}
