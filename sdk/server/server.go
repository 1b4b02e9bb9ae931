// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The server package wires the FSH completion engine into an LSP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/standardhealth/fsh-lsp/sdk/config"
	"github.com/standardhealth/fsh-lsp/sdk/fhir"
	"github.com/standardhealth/fsh-lsp/sdk/fsh"
	"github.com/standardhealth/fsh-lsp/sdk/lsp"
	"github.com/standardhealth/fsh-lsp/sdk/step"
	"github.com/standardhealth/fsh-lsp/sdk/version"
	"github.com/standardhealth/fsh-lsp/sdk/watch"
)

// Options configure a server before the client connects.
type Options struct {
	// The FHIR cache to load definitions from. Settings sent by the client
	// take precedence.
	FhirCachePath string

	Logger *zap.SugaredLogger
}

type server struct {
	// Guards docs, roots, settings, refresh and watcher. Refreshes started by
	// the cache watcher run outside of any request.
	m    sync.Mutex
	docs map[protocol.DocumentURI]*lsp.Document
	// Workspace folders, as file system paths.
	roots []string

	workspace *fsh.Workspace
	fhir      *fhir.Index

	// The cache path given on the command line, and the one the client
	// configured.
	defaultCachePath string
	settings         config.Settings

	// The most recent refresh of the FHIR index. Each refresh is sequenced
	// after the previous one.
	refresh *step.Step[int]
	watcher *watch.CacheWatcher
	// The context refreshes triggered outside of a request run in.
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.SugaredLogger
}

func newServer(opts Options) *server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	workspace := fsh.NewWorkspace()
	workspace.Logger = logger
	return &server{
		docs:             map[protocol.DocumentURI]*lsp.Document{},
		workspace:        workspace,
		fhir:             fhir.NewIndex(),
		defaultCachePath: opts.FhirCachePath,
		ctx:              ctx,
		cancel:           cancel,
		logger:           logger,
	}
}

// Methods returns the LSP methods of a FSH language server.
func Methods(opts Options) *lsp.Methods {
	s := newServer(opts)
	return lsp.Methods{
		TriggerCharacters:          []string{" ", ","},
		InitializeFunc:             s.initialize,
		InitializedFunc:            s.initialized,
		ShutdownFunc:               s.shutdown,
		DidOpenFunc:                s.didOpen,
		DidCloseFunc:               s.didClose,
		DidChangeFunc:              s.didChange,
		DidChangeConfigurationFunc: s.didChangeConfiguration,
		DidChangeWatchedFilesFunc:  s.didChangeWatchedFiles,
		CompletionFunc:             s.completion,
	}.DefaultInitializer("fsh-lsp", version.Version)
}

func (s *server) getDocument(u protocol.DocumentURI) (*lsp.Document, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	d, ok := s.docs[u]
	return d, ok
}

func (s *server) initialize(client lsp.Client, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	settings, err := config.ParseSettings(params.InitializationOptions)
	if err != nil {
		client.LogWarningf("Ignoring initialization options: %v", err)
	}

	var roots []string
	for _, folder := range params.WorkspaceFolders {
		roots = append(roots, uri.New(folder.URI).Filename())
	}
	if len(roots) == 0 && params.RootURI != "" {
		roots = append(roots, params.RootURI.Filename())
	}
	s.m.Lock()
	defer s.m.Unlock()
	s.settings = settings
	s.roots = roots
	return nil, nil
}

func (s *server) initialized(client lsp.Client, params *protocol.InitializedParams) error {
	s.m.Lock()
	roots := s.roots
	s.m.Unlock()
	for _, root := range roots {
		if err := s.workspace.LoadDir(root); err != nil {
			client.LogWarningf("Some FSH files under %s could not be read: %v", root, err)
		}
	}
	err := client.RegisterCapability(&protocol.RegistrationParams{
		Registrations: []protocol.Registration{{
			ID:     "fsh-lsp-watched-files",
			Method: protocol.MethodWorkspaceDidChangeWatchedFiles,
			RegisterOptions: protocol.DidChangeWatchedFilesRegistrationOptions{
				Watchers: []protocol.FileSystemWatcher{
					{GlobPattern: "**/*" + fsh.FileExtension},
					{GlobPattern: "**/" + config.ProjectFileName},
				},
			},
		}},
	})
	if err != nil {
		client.LogWarningf("Could not register for file changes: %v", err)
	}
	s.refreshFhir(client)
	return nil
}

func (s *server) shutdown(client lsp.Client) error {
	s.cancel()
	s.m.Lock()
	defer s.m.Unlock()
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

func (s *server) didOpen(client lsp.Client, params *protocol.DidOpenTextDocumentParams) error {
	u := params.TextDocument.URI
	client.LogDebugf("Opened file %s", u.Filename())
	doc := lsp.NewDocument(params.TextDocument)
	s.m.Lock()
	s.docs[u] = &doc
	s.m.Unlock()
	s.workspace.Open(u, &doc)
	return nil
}

func (s *server) didClose(client lsp.Client, params *protocol.DidCloseTextDocumentParams) error {
	u := params.TextDocument.URI
	client.LogDebugf("Closing file %s", u.Filename())
	s.m.Lock()
	_, ok := s.docs[u]
	delete(s.docs, u)
	s.m.Unlock()
	if !ok {
		client.LogWarningf("Attempted to close unopened file %s", u.Filename())
	}
	s.workspace.Close(u)
	return nil
}

func (s *server) didChange(client lsp.Client, params *protocol.DidChangeTextDocumentParams) error {
	u := params.TextDocument.URI
	doc, ok := s.getDocument(u)
	if !ok {
		return fmt.Errorf("could not find document %s(%s)", u.Filename(), u)
	}
	if err := doc.AcceptChanges(params.TextDocument.Version, params.ContentChanges); err != nil {
		return err
	}
	client.LogDebugf("Updated %s to version %d", u.Filename(), doc.Version())
	return nil
}

func (s *server) didChangeConfiguration(client lsp.Client, params *protocol.DidChangeConfigurationParams) error {
	settings, err := config.ParseSettings(params.Settings)
	if err != nil {
		return err
	}
	s.m.Lock()
	changed := settings != s.settings
	s.settings = settings
	cachePath := s.cachePathLocked()
	s.m.Unlock()
	if !changed {
		return nil
	}
	client.LogInfof("FHIR cache path changed to %q", cachePath)
	s.refreshFhir(client)
	return nil
}

func (s *server) didChangeWatchedFiles(client lsp.Client, params *protocol.DidChangeWatchedFilesParams) error {
	projectChanged := false
	for _, change := range params.Changes {
		if filepath.Base(change.URI.Filename()) == config.ProjectFileName {
			projectChanged = true
			continue
		}
		if _, open := s.getDocument(change.URI); open {
			// The editor's copy is authoritative while the document is open.
			continue
		}
		if change.Type == protocol.FileChangeTypeDeleted {
			s.workspace.RemoveFile(change.URI)
			continue
		}
		if err := s.workspace.ReloadFile(change.URI); err != nil {
			client.LogWarningf("%v", err)
		}
	}
	if projectChanged {
		s.refreshFhir(client)
	}
	return nil
}

// cachePathLocked is the FHIR cache currently in effect. An empty path
// disables FHIR completions. The caller must hold s.m.
func (s *server) cachePathLocked() string {
	if s.settings.FhirCachePath != "" {
		return s.settings.FhirCachePath
	}
	return s.defaultCachePath
}

// projectPackages lists the FHIR packages required by the first of roots that
// has a SUSHI project file.
func projectPackages(client lsp.Client, roots []string) []fhir.PackageRef {
	for _, root := range roots {
		project, err := config.FindProject(root)
		if err != nil {
			client.LogWarningf("%v", err)
			continue
		}
		if project != nil {
			return project.Packages()
		}
	}
	return (*config.Project)(nil).Packages()
}

// refreshFhir reloads the FHIR index in the background. Refreshes run one at
// a time, in the order they were requested.
func (s *server) refreshFhir(client lsp.Client) *step.Step[int] {
	s.m.Lock()
	cachePath := s.cachePathLocked()
	roots := s.roots
	s.m.Unlock()

	updater := fhir.NewUpdater(s.fhir)
	updater.Packages = projectPackages(client, roots)
	updater.Logger = s.logger
	bg := client.WithContext(s.ctx)

	s.m.Lock()
	defer s.m.Unlock()
	s.refresh = step.Sequence(s.ctx, s.refresh, func(ctx context.Context) (int, error) {
		err := updater.UpdateFhirEntities(ctx, cachePath)
		if err != nil {
			reportRefreshError(bg, err)
			return 0, err
		}
		if cachePath != "" {
			bg.LogInfof("Indexed %d FHIR definitions from %s", s.fhir.Len(), cachePath)
			s.watchCache(bg, cachePath)
		}
		return s.fhir.Len(), nil
	})
	return s.refresh
}

// lastRefresh is the most recently requested refresh, if any.
func (s *server) lastRefresh() *step.Step[int] {
	s.m.Lock()
	defer s.m.Unlock()
	return s.refresh
}

func reportRefreshError(client lsp.Client, err error) {
	var notFound *fhir.DefinitionsNotFoundError
	var unreadable *fhir.ManifestUnreadableError
	switch {
	case errors.As(err, &notFound), errors.As(err, &unreadable):
		_ = client.ShowMessage(protocol.MessageTypeWarning, err.Error())
	default:
		_ = client.LogErrorf("Refreshing FHIR definitions failed: %v", err)
	}
}

// watchCache starts watching the packages directory of cachePath, replacing
// any watcher of a previous cache.
func (s *server) watchCache(client lsp.Client, cachePath string) {
	packages := filepath.Join(cachePath, "packages")
	if filepath.Base(filepath.Clean(cachePath)) == "packages" {
		packages = cachePath
	}
	s.m.Lock()
	defer s.m.Unlock()
	if s.watcher != nil {
		if s.watcher.Root() == filepath.Clean(packages) {
			return
		}
		_ = s.watcher.Close()
		s.watcher = nil
	}
	w, err := watch.New(packages, watch.DefaultDebounce, s.logger, func() {
		client.LogInfof("FHIR cache changed, reloading definitions")
		s.refreshFhir(client)
	})
	if err != nil {
		// Not every cache layout has a packages directory to watch.
		s.logger.Debugf("Not watching %s: %v", packages, err)
		return
	}
	w.Start(s.ctx)
	s.watcher = w
}
