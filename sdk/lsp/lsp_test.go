// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

func TestServerRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	var opened protocol.DocumentURI
	methods := Methods{
		TriggerCharacters: []string{" "},
		DidOpenFunc: func(client Client, params *protocol.DidOpenTextDocumentParams) error {
			opened = params.TextDocument.URI
			return nil
		},
		CompletionFunc: func(client Client, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
			return &protocol.CompletionList{Items: []protocol.CompletionItem{
				{Label: "Patient", Detail: "FHIR Resource"},
			}}, nil
		},
	}.DefaultInitializer("fsh-lsp", "test")
	server := NewServer(methods, serverConn)
	server.Logger = zap.NewNop().Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	client := jsonrpc2.NewConn(jsonrpc2.NewStream(clientConn))
	client.Go(ctx, jsonrpc2.MethodNotFoundHandler)
	defer client.Close()

	var initResult protocol.InitializeResult
	_, err := client.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &initResult)
	require.NoError(t, err)
	require.NotNil(t, initResult.Capabilities.CompletionProvider)
	assert.Equal(t, []string{" "}, initResult.Capabilities.CompletionProvider.TriggerCharacters)
	assert.Equal(t, "fsh-lsp", initResult.ServerInfo.Name)
	assert.True(t, server.IsInitialized())

	require.NoError(t, client.Notify(ctx, protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///profiles.fsh", Text: "Profile: A\nParent: "},
	}))

	var list protocol.CompletionList
	_, err = client.Call(ctx, protocol.MethodTextDocumentCompletion, &protocol.CompletionParams{}, &list)
	require.NoError(t, err)
	assert.Equal(t, []protocol.CompletionItem{{Label: "Patient", Detail: "FHIR Resource"}}, list.Items)
	// Messages are handled in order, so the earlier notification was seen.
	assert.Equal(t, protocol.DocumentURI("file:///profiles.fsh"), opened)

	_, err = client.Call(ctx, protocol.MethodTextDocumentHover, &protocol.HoverParams{}, nil)
	assert.Error(t, err)

	_, err = client.Call(ctx, protocol.MethodShutdown, nil, nil)
	require.NoError(t, err)
	require.NoError(t, client.Notify(ctx, protocol.MethodExit, nil))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("server did not exit")
	}
}

func TestDefaultInitializerSaveSync(t *testing.T) {
	syncOptions := func(m Methods) *protocol.TextDocumentSyncOptions {
		result, err := m.DefaultInitializer("fsh-lsp", "test").InitializeFunc(Client{}, &protocol.InitializeParams{})
		require.NoError(t, err)
		opts, ok := result.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
		require.True(t, ok)
		return opts
	}

	opts := syncOptions(Methods{DidOpenFunc: func(Client, *protocol.DidOpenTextDocumentParams) error { return nil }})
	assert.True(t, opts.OpenClose)
	assert.Nil(t, opts.Save)

	opts = syncOptions(Methods{DidSaveFunc: func(Client, *protocol.DidSaveTextDocumentParams) error { return nil }})
	require.NotNil(t, opts.Save)
	assert.False(t, opts.Save.IncludeText)
}
