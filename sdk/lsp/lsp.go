// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The lsp package implements a convenience wrapper around the
// go.lsp.dev/protocol package. It handles setting up a server that replies to
// only some lsp requests, as well as providing other helpful LSP intrinsics.

package lsp

import (
	"context"
	"io"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// A Server combines a set of LSP methods with the infrastructure needed to
// fullfill the server side of the LSP contract.
type Server struct {
	methods       *Methods
	conn          io.ReadWriteCloser
	rpc           jsonrpc2.Conn
	isInitialized bool
	exited        bool
	client        protocol.Client

	// The logger used by the server.
	Logger *zap.SugaredLogger
}

// Create a new server backed by `Methods`. The server reads requests and writes
// responses via `conn`.
func NewServer(methods *Methods, conn io.ReadWriteCloser) Server {
	return Server{
		methods: methods,
		conn:    conn,
	}
}

// Synchronously run the server. The server is rooted in the given context,
// which can be used to cancel the server. Run returns once the client sends
// `exit`, the connection closes or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.Logger == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		s.Logger = logger.Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.rpc = jsonrpc2.NewConn(jsonrpc2.NewStream(s.conn))
	s.client = protocol.ClientDispatcher(s.rpc, s.Logger.Desugar())
	s.methods.server = s
	s.rpc.Go(ctx, s.methods.serve().handle)

	select {
	case <-ctx.Done():
		_ = s.rpc.Close()
		<-s.rpc.Done()
		return ctx.Err()
	case <-s.rpc.Done():
		if s.exited {
			return nil
		}
		return s.rpc.Err()
	}
}

// IsInitialized reports whether the client has sent `initialize`.
func (s *Server) IsInitialized() bool {
	return s.isInitialized
}

// Close the connection after the client asked the server to exit.
func (s *Server) exit() {
	s.exited = true
	if err := s.rpc.Close(); err != nil {
		s.Logger.Debugf("Closing connection on exit: %v", err)
	}
}
