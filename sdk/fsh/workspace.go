// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fsh

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/standardhealth/fsh-lsp/sdk/util"
)

// FileExtension is the extension of FSH source files.
const FileExtension = ".fsh"

// Workspace indexes the entities declared across a workspace's FSH files.
//
// Open documents are read through on every query, so results always reflect
// unsaved edits. Files that are not open are scanned once when they are loaded
// from disk and again when the client reports that they changed.
type Workspace struct {
	m sync.RWMutex
	// Documents open in the editor. These take precedence over disk.
	open map[protocol.DocumentURI]fmt.Stringer
	// Declarations of files read from disk.
	disk map[protocol.DocumentURI][]Declaration

	Logger *zap.SugaredLogger
}

func NewWorkspace() *Workspace {
	return &Workspace{
		open:   map[protocol.DocumentURI]fmt.Stringer{},
		disk:   map[protocol.DocumentURI][]Declaration{},
		Logger: zap.NewNop().Sugar(),
	}
}

// Open registers a live document. The document's text is read each time the
// workspace is queried.
func (w *Workspace) Open(u protocol.DocumentURI, doc fmt.Stringer) {
	w.m.Lock()
	defer w.m.Unlock()
	w.open[u] = doc
}

// Close forgets a live document. Its last saved contents are picked up from
// disk if it is an FSH file that still exists.
func (w *Workspace) Close(u protocol.DocumentURI) {
	w.m.Lock()
	delete(w.open, u)
	w.m.Unlock()
	if err := w.ReloadFile(u); err != nil {
		w.Logger.Debugf("Not reloading %s after close: %v", u.Filename(), err)
	}
}

// ReloadFile rereads a file from disk. Files that no longer exist are dropped
// from the index.
func (w *Workspace) ReloadFile(u protocol.DocumentURI) error {
	path := u.Filename()
	if filepath.Ext(path) != FileExtension {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.RemoveFile(u)
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	w.SetFile(u, string(data))
	return nil
}

// SetFile records the on-disk contents of a file.
func (w *Workspace) SetFile(u protocol.DocumentURI, text string) {
	decls := ScanDeclarations(text)
	w.m.Lock()
	defer w.m.Unlock()
	w.disk[u] = decls
}

// RemoveFile drops a file read from disk.
func (w *Workspace) RemoveFile(u protocol.DocumentURI) {
	w.m.Lock()
	defer w.m.Unlock()
	delete(w.disk, u)
}

// LoadDir scans every FSH file below root. Files that cannot be read are
// skipped, and their errors are returned together once the walk completes.
func (w *Workspace) LoadDir(root string) error {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	var errs error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != FileExtension {
			return nil
		}
		errs = multierr.Append(errs, w.ReloadFile(protocol.DocumentURI(uri.File(path))))
		return nil
	})
	errs = multierr.Append(errs, walkErr)
	w.Logger.Debugf("Loaded FSH files under %s (%d errors)", root, len(multierr.Errors(errs)))
	return errs
}

// declarations returns every declaration in the workspace. Documents are
// visited in URI order so results are stable.
func (w *Workspace) declarations() []Declaration {
	w.m.RLock()
	defer w.m.RUnlock()
	uris := make([]protocol.DocumentURI, 0, len(w.open)+len(w.disk))
	for u := range w.open {
		uris = append(uris, u)
	}
	for u := range w.disk {
		if _, ok := w.open[u]; !ok {
			uris = append(uris, u)
		}
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	var decls []Declaration
	for _, u := range uris {
		if doc, ok := w.open[u]; ok {
			decls = append(decls, ScanDeclarations(doc.String())...)
		} else {
			decls = append(decls, w.disk[u]...)
		}
	}
	return decls
}

// EntityItems returns one item per declared name that has at least one
// declaration of a requested kind. The detail of each item lists every kind
// the name is declared as, not only the requested ones.
func (w *Workspace) EntityItems(kinds ...EntityKind) []CandidateItem {
	var names []string
	kindsOf := map[string][]EntityKind{}
	for _, d := range w.declarations() {
		known, seen := kindsOf[d.Name]
		if !seen {
			names = append(names, d.Name)
		}
		if !util.SliceContains(known, d.Kind) {
			kindsOf[d.Name] = append(known, d.Kind)
		}
	}

	items := []CandidateItem{}
	for _, name := range names {
		declared := kindsOf[name]
		if !util.SliceIntersects(declared, kinds) {
			continue
		}
		items = append(items, CandidateItem{
			Label:  name,
			Detail: strings.Join(util.MapOver(declared, EntityKind.String), ", "),
		})
	}
	return items
}
