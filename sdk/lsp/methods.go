// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Methods provides the interface to define methods for the LSP server.
//
// Only the methods a FSH language server needs are exposed. Requests for any
// other method are answered with "method not found".
type Methods struct {
	// A pointer back to the server
	server *Server

	// Characters that make the client request completion without an
	// explicit user action.
	TriggerCharacters []string

	InitializeFunc             func(client Client, params *protocol.InitializeParams) (result *protocol.InitializeResult, err error)
	InitializedFunc            func(client Client, params *protocol.InitializedParams) (err error)
	ShutdownFunc               func(client Client) (err error)
	ExitFunc                   func(client Client) (err error)
	CompletionFunc             func(client Client, params *protocol.CompletionParams) (result *protocol.CompletionList, err error)
	DidChangeFunc              func(client Client, params *protocol.DidChangeTextDocumentParams) (err error)
	DidChangeConfigurationFunc func(client Client, params *protocol.DidChangeConfigurationParams) (err error)
	DidChangeWatchedFilesFunc  func(client Client, params *protocol.DidChangeWatchedFilesParams) (err error)
	DidCloseFunc               func(client Client, params *protocol.DidCloseTextDocumentParams) (err error)
	DidOpenFunc                func(client Client, params *protocol.DidOpenTextDocumentParams) (err error)
	DidSaveFunc                func(client Client, params *protocol.DidSaveTextDocumentParams) (err error)
}

// Guess what capabilities should be enabled from what functions are registered.
// The returned initializer calls the previously set `InitializeFunc`, if any,
// before answering.
func (m Methods) DefaultInitializer(name, version string) *Methods {
	inner := m.InitializeFunc
	m.InitializeFunc = func(client Client, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
		if inner != nil {
			if _, err := inner(client, params); err != nil {
				return nil, err
			}
		}
		var completion *protocol.CompletionOptions
		if m.CompletionFunc != nil {
			completion = &protocol.CompletionOptions{
				TriggerCharacters: m.TriggerCharacters,
			}
		}
		var save *protocol.SaveOptions
		if m.DidSaveFunc != nil {
			save = &protocol.SaveOptions{
				IncludeText: false,
			}
		}
		return &protocol.InitializeResult{
			Capabilities: protocol.ServerCapabilities{
				TextDocumentSync: &protocol.TextDocumentSyncOptions{
					OpenClose: m.DidOpenFunc != nil || m.DidCloseFunc != nil,
					Change:    protocol.TextDocumentSyncKindIncremental,
					Save:      save,
				},
				CompletionProvider: completion,
			},
			ServerInfo: &protocol.ServerInfo{
				Name:    name,
				Version: version,
			},
		}, nil
	}
	return &m
}

func (m *methods) client(ctx context.Context) Client {
	return Client{
		inner: m.server.client,
		ctx:   ctx,
	}
}

func (m *Methods) serve() *methods {
	return &methods{m}
}

// The actual dispatcher of incoming messages. We do this to prevent calling a
// method on `Methods`, and to keep auto-complete uncluttered.
type methods struct {
	*Methods
}

func (m *methods) warnUninitialized(name string) {
	m.server.Logger.Debugf("'%s' was called but no handler was provided", name)
}

// handle is the jsonrpc2.Handler of the server. Messages are handled in the
// order they arrive, so a completion request always sees the edits sent
// before it.
func (m *methods) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	client := m.client(ctx)
	switch req.Method() {
	case protocol.MethodInitialize:
		m.server.isInitialized = true
		return request(ctx, reply, req, m, "initialize", m.InitializeFunc, client)
	case protocol.MethodInitialized:
		return notification(ctx, reply, req, m, "initialized", m.InitializedFunc, client)
	case protocol.MethodShutdown:
		var err error
		if m.ShutdownFunc != nil {
			err = m.ShutdownFunc(client)
		} else {
			m.warnUninitialized("shutdown")
		}
		return reply(ctx, nil, err)
	case protocol.MethodExit:
		var err error
		if m.ExitFunc != nil {
			err = m.ExitFunc(client)
		} else {
			m.warnUninitialized("exit")
		}
		replyErr := reply(ctx, nil, err)
		m.server.exit()
		return replyErr
	case protocol.MethodTextDocumentCompletion:
		return request(ctx, reply, req, m, "completion", m.CompletionFunc, client)
	case protocol.MethodTextDocumentDidOpen:
		return notification(ctx, reply, req, m, "didOpen", m.DidOpenFunc, client)
	case protocol.MethodTextDocumentDidChange:
		return notification(ctx, reply, req, m, "didChange", m.DidChangeFunc, client)
	case protocol.MethodTextDocumentDidClose:
		return notification(ctx, reply, req, m, "didClose", m.DidCloseFunc, client)
	case protocol.MethodTextDocumentDidSave:
		return notification(ctx, reply, req, m, "didSave", m.DidSaveFunc, client)
	case protocol.MethodWorkspaceDidChangeConfiguration:
		return notification(ctx, reply, req, m, "didChangeConfiguration", m.DidChangeConfigurationFunc, client)
	case protocol.MethodWorkspaceDidChangeWatchedFiles:
		return notification(ctx, reply, req, m, "didChangeWatchedFiles", m.DidChangeWatchedFilesFunc, client)
	}
	if strings.HasPrefix(req.Method(), "$/") {
		// Implementation dependent notifications may be ignored.
		return reply(ctx, nil, nil)
	}
	return reply(ctx, nil, fmt.Errorf("%q: %w", req.Method(), jsonrpc2.ErrMethodNotFound))
}

func decodeParams[P any](req jsonrpc2.Request) (*P, error) {
	params := new(P)
	if len(req.Params()) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(req.Params(), params); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", req.Method(), jsonrpc2.ErrInvalidParams, err.Error())
	}
	return params, nil
}

func request[P, R any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request,
	m *methods, name string, f func(Client, *P) (R, error), client Client) error {
	if f == nil {
		m.warnUninitialized(name)
		return reply(ctx, nil, nil)
	}
	params, err := decodeParams[P](req)
	if err != nil {
		return reply(ctx, nil, err)
	}
	result, err := f(client, params)
	return reply(ctx, result, err)
}

func notification[P any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request,
	m *methods, name string, f func(Client, *P) error, client Client) error {
	if f == nil {
		m.warnUninitialized(name)
		return reply(ctx, nil, nil)
	}
	params, err := decodeParams[P](req)
	if err != nil {
		return reply(ctx, nil, err)
	}
	err = f(client, params)
	if err != nil {
		m.server.Logger.Errorf("%s failed: %v", name, err)
	}
	return reply(ctx, nil, err)
}
