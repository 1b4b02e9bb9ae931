// Copyright 2022, Pulumi Corporation.  All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/standardhealth/fsh-lsp/sdk/config"
	"github.com/standardhealth/fsh-lsp/sdk/fhir"
	"github.com/standardhealth/fsh-lsp/sdk/fsh"
	"github.com/standardhealth/fsh-lsp/sdk/lsp"
	"github.com/standardhealth/fsh-lsp/sdk/server"
	"github.com/standardhealth/fsh-lsp/sdk/version"
)

func main() {
	defer panicHandler()
	if err := newLSPCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "An error occurred: %v\n", err)
		os.Exit(1)
	}
}

type rootArgs struct {
	fhirCache string
	verbose   bool
}

// cachePath is the FHIR cache to use when the client does not configure one.
func (a *rootArgs) cachePath() string {
	if a.fhirCache != "" {
		return a.fhirCache
	}
	return config.DefaultFhirCachePath()
}

// logger writes to stderr; stdout carries the protocol.
func (a *rootArgs) logger() (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func newLSPCommand() *cobra.Command {
	args := &rootArgs{}
	cmd := &cobra.Command{
		Use:   "fsh-lsp",
		Short: "A LSP for FHIR Shorthand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := args.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			methods := server.Methods(server.Options{
				FhirCachePath: args.cachePath(),
				Logger:        logger,
			})
			s := lsp.NewServer(methods, &stdio{false})
			s.Logger = logger
			return s.Run(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&args.fhirCache, "fhir-cache", "",
		"The FHIR package cache to load definitions from (defaults to ~/.fhir)")
	cmd.PersistentFlags().BoolVarP(&args.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCompleteCmd(args))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print fsh-lsp's version number",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Printf("%v\n", version.Version)
		},
	}
}

func newCompleteCmd(args *rootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <file> <line> <column>",
		Short: "Print the completions offered at a position",
		Long: "Print the completions offered at a position.\n\n" +
			"Lines and columns start at 1. Names declared in FSH files next to <file>, and\n" +
			"FHIR definitions from the cache, are suggested as the editor would see them.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, positional []string) error {
			path, err := filepath.Abs(positional[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(positional[1], positional[2])
			if err != nil {
				return err
			}
			logger, err := args.logger()
			if err != nil {
				return err
			}
			items, err := complete(cmd.Context(), path, pos, args.cachePath(), logger)
			if err != nil {
				return err
			}
			if items == nil {
				fmt.Fprintln(os.Stderr, "No completions at this position")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, item := range items {
				if item.Detail == "" {
					fmt.Fprintln(out, item.Label)
				} else {
					fmt.Fprintf(out, "%s\t%s\n", item.Label, item.Detail)
				}
			}
			return nil
		},
	}
}

func parsePosition(line, column string) (protocol.Position, error) {
	l, err := strconv.ParseUint(line, 10, 32)
	if err != nil || l == 0 {
		return protocol.Position{}, fmt.Errorf("invalid line %q", line)
	}
	c, err := strconv.ParseUint(column, 10, 32)
	if err != nil || c == 0 {
		return protocol.Position{}, fmt.Errorf("invalid column %q", column)
	}
	return protocol.Position{Line: uint32(l - 1), Character: uint32(c - 1)}, nil
}

func complete(ctx context.Context, path string, pos protocol.Position,
	cachePath string, logger *zap.SugaredLogger) ([]fsh.CandidateItem, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	u := protocol.DocumentURI(uri.File(path))
	doc := lsp.NewDocument(protocol.TextDocumentItem{
		URI:        u,
		LanguageID: "fsh",
		Text:       string(text),
	})

	root := filepath.Dir(path)
	workspace := fsh.NewWorkspace()
	workspace.Logger = logger
	if err := workspace.LoadDir(root); err != nil {
		logger.Warnf("Some FSH files could not be read: %v", err)
	}
	workspace.Open(u, &doc)

	project, err := config.FindProject(root)
	if err != nil {
		return nil, err
	}
	index := fhir.NewIndex()
	updater := fhir.NewUpdater(index)
	updater.Packages = project.Packages()
	updater.Logger = logger
	if err := updater.UpdateFhirEntities(ctx, cachePath); err != nil {
		return nil, err
	}
	return server.Candidates(&doc, pos, workspace, index), nil
}

func panicHandler() {
	if panicPayload := recover(); panicPayload != nil {
		stack := string(debug.Stack())
		fmt.Fprintln(os.Stderr, "================================================================================")
		fmt.Fprintln(os.Stderr, "fsh-lsp encountered a fatal error. This is a bug!")
		fmt.Fprintln(os.Stderr, "Please provide all of the below text in your report.")
		fmt.Fprintln(os.Stderr, "================================================================================")
		fmt.Fprintf(os.Stderr, "fsh-lsp Version:      %s\n", version.Version)
		fmt.Fprintf(os.Stderr, "Go Version:           %s\n", runtime.Version())
		fmt.Fprintf(os.Stderr, "Go Compiler:          %s\n", runtime.Compiler)
		fmt.Fprintf(os.Stderr, "Architecture:         %s\n", runtime.GOARCH)
		fmt.Fprintf(os.Stderr, "Operating System:     %s\n", runtime.GOOS)
		fmt.Fprintf(os.Stderr, "Panic:                %s\n\n", panicPayload)
		fmt.Fprintln(os.Stderr, stack)
		os.Exit(1)
	}
}

// An io.ReadWriteCloser, whose value indicates if the closer is closed.
type stdio struct{ bool }

func (s *stdio) Read(p []byte) (n int, err error) {
	if s.bool {
		return 0, io.EOF
	}
	return os.Stdin.Read(p)
}

func (s *stdio) Write(p []byte) (n int, err error) {
	if s.bool {
		return 0, io.EOF
	}
	return os.Stdout.Write(p)
}

func (s *stdio) Close() error {
	s.bool = true
	return nil
}
