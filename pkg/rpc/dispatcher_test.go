package rpc_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memscribe/memscribe/pkg/rpc"
)

func TestDispatchRejectsWrongProtocolVersion(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	resp := d.Dispatch(context.Background(), "u1", &rpc.Request{
		JSONRPC: "1.0",
		ID:      json.RawMessage(`1`),
		Method:  "ping",
	})
	assert.NotNil(t, resp)
	assert.Equal(t, rpc.CodeInvalidRequest, resp.Error.Code)
}

func TestDispatchNotificationReturnsNil(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	resp := d.Dispatch(context.Background(), "u1", &rpc.Request{
		JSONRPC: "2.0",
		Method:  "ping",
	})
	assert.Nil(t, resp)
}

func TestDispatchPingReturnsResult(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	resp := d.Dispatch(context.Background(), "u1", &rpc.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "ping",
	})
	assert.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	resp := d.Dispatch(context.Background(), "u1", &rpc.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "not_a_method",
	})
	assert.NotNil(t, resp)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestKnownUsersTracksDispatchedTenants(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	assert.Empty(t, d.KnownUsers())

	d.Dispatch(context.Background(), "alice", &rpc.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "ping"})
	d.Dispatch(context.Background(), "bob", &rpc.Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "ping"})
	d.Dispatch(context.Background(), "alice", &rpc.Request{JSONRPC: "2.0", ID: json.RawMessage(`3`), Method: "ping"})

	assert.ElementsMatch(t, []string{"alice", "bob"}, d.KnownUsers())
}

func TestKnownUsersIgnoresEmptyUserID(t *testing.T) {
	d := rpc.NewDispatcher(nil, nil, nil)
	d.Dispatch(context.Background(), "", &rpc.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "ping"})
	assert.Empty(t, d.KnownUsers())
}
