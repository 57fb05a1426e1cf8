package protocol

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientServerRoundTrip drives a server over pipes the way an
// orchestrator does.
func TestClientServerRoundTrip(t *testing.T) {
	s, _ := filesServer(t)

	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := s.Run(context.Background(), clientToServerR, serverToClientW)
		serverToClientW.Close()
		done <- err
	}()

	c := NewClient(serverToClientR, clientToServerW)
	ctx := context.Background()

	var init InitializeResult
	require.NoError(t, c.Call(ctx, MethodInitialize, map[string]any{}, &init))
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)

	require.NoError(t, c.Notify("notifications/initialized", nil))

	var list ListToolsResult
	require.NoError(t, c.Call(ctx, MethodListTools, nil, &list))
	assert.Len(t, list.Tools, 6)

	var call CallToolResult
	require.NoError(t, c.Call(ctx, MethodCallTool, CallToolParams{
		Name:      "Read",
		Arguments: map[string]any{"file_path": "notes.txt"},
	}, &call))
	assert.Contains(t, call.Content[0].Text, "hello from notes")

	err := c.Call(ctx, "bogus", nil, nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)

	require.NoError(t, c.Call(ctx, MethodPing, nil, nil))

	clientToServerW.Close()
	require.NoError(t, <-done)
}

func TestClientCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(nil, io.Discard)
	assert.ErrorIs(t, c.Call(ctx, MethodPing, nil, nil), context.Canceled)
}
