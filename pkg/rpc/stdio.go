package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"
)

// StdioServer serves the line-delimited JSON-RPC transport: one
// request per line on in, one response per line on out. No
// authentication — spec.md §4.8 treats this transport as local OS
// user trust, so every request is dispatched under a fixed userID
// supplied at construction rather than resolved per-request.
type StdioServer struct {
	Dispatcher *Dispatcher
	UserID     string
	Log        *zap.Logger
}

func NewStdioServer(d *Dispatcher, userID string, log *zap.Logger) *StdioServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StdioServer{Dispatcher: d, UserID: userID, Log: log}
}

// Serve reads newline-delimited requests from in and writes
// newline-delimited responses to out until in is exhausted or ctx is
// canceled. Diagnostics never touch out — callers pass os.Stdout there
// and something pointed at stderr for the logger, so no log line can
// ever corrupt a response stream sharing the same descriptor.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(errorResponse(nil, CodeParseError, "parse error: "+err.Error(), nil)); encErr != nil {
				return encErr
			}
			continue
		}

		resp := s.Dispatcher.Dispatch(ctx, s.UserID, &req)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.Log.Error("stdio transport read error", zap.Error(err))
		return err
	}
	return nil
}
