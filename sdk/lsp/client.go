// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
)

// Client represents a LSP client to a Server. It is passed to all methods and
// is used to post non-requested messages to the client.
//
// The zero Client (and one built by NewClient with a nil inner client) drops
// every message. This lets handlers run without a connection in tests.
type Client struct {
	inner protocol.Client
	ctx   context.Context
}

// NewClient wraps a protocol.Client, scoping calls to ctx.
func NewClient(ctx context.Context, inner protocol.Client) Client {
	return Client{inner: inner, ctx: ctx}
}

// WithContext returns a Client that sends its messages under ctx. Use it to
// message the client after the method that received c has returned.
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Display a message in the editor's UI.
func (c *Client) ShowMessage(level protocol.MessageType, txt string) error {
	if c.inner == nil {
		return nil
	}
	return c.inner.ShowMessage(c.Context(), &protocol.ShowMessageParams{
		Message: txt,
		Type:    level,
	})
}

// Ask the client to send notifications for a method, such as changes to files
// matched by a glob.
func (c *Client) RegisterCapability(params *protocol.RegistrationParams) error {
	if c.inner == nil {
		return nil
	}
	return c.inner.RegisterCapability(c.Context(), params)
}

func (c *Client) logMessage(level protocol.MessageType, txt string) error {
	if c.inner == nil {
		return nil
	}
	err := c.inner.LogMessage(c.Context(), &protocol.LogMessageParams{
		Message: txt,
		Type:    level,
	})

	if err != nil {
		err = c.inner.LogMessage(c.Context(), &protocol.LogMessageParams{
			Message: fmt.Sprintf(`Failed to send message "%s" at level %s: %s`,
				txt, level.String(), err.Error()),
			Type: protocol.MessageTypeError,
		})
	}
	return err
}

func (c *Client) LogErrorf(msg string, args ...interface{}) error {
	return c.logMessage(protocol.MessageTypeError, fmt.Sprintf(msg, args...))
}

func (c *Client) LogWarningf(msg string, args ...interface{}) error {
	return c.logMessage(protocol.MessageTypeWarning, fmt.Sprintf(msg, args...))
}

func (c *Client) LogInfof(msg string, args ...interface{}) error {
	return c.logMessage(protocol.MessageTypeInfo, fmt.Sprintf(msg, args...))
}

func (c *Client) LogDebugf(msg string, args ...interface{}) error {
	return c.logMessage(protocol.MessageTypeLog, fmt.Sprintf(msg, args...))
}

// Retrieve the Context of method that Client was passed with.
func (c *Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
