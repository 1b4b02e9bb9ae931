// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
	"go.lsp.dev/protocol"

	"github.com/standardhealth/fsh-lsp/sdk/util"
)

// A thread-safe text document designed to handle incremental updates.
type Document struct {
	// Any method that reads `lines` needs to acquire a read lock of `m`. To
	// mutate `lines`, a write lock is required.
	lines []string
	// NOTE: uri should be considered immutable. This allows us to fetch is
	// without a lock.
	uri protocol.DocumentURI
	m   *sync.RWMutex

	version    int32
	languageID protocol.LanguageIdentifier
}

// Create a new document from a TextDocumentItem.
func NewDocument(item protocol.TextDocumentItem) Document {
	return Document{
		lines:      strings.Split(item.Text, lineDeliminator),
		uri:        item.URI,
		version:    item.Version,
		languageID: item.LanguageID,

		m: new(sync.RWMutex),
	}
}

const lineDeliminator = "\n"

// Update the document with the given changes, and record the new version.
// Changes are applied in order; if one fails the remaining changes are not
// applied.
func (d *Document) AcceptChanges(version int32, changes []protocol.TextDocumentContentChangeEvent) error {
	d.m.Lock()
	defer d.m.Unlock()
	for _, change := range changes {
		if err := d.acceptChange(change); err != nil {
			return err
		}
	}
	d.version = version
	return nil
}

// Retrieve the URI of the Document.
func (d *Document) URI() protocol.DocumentURI {
	return d.uri
}

// The version of the document last accepted.
func (d *Document) Version() int32 {
	d.m.RLock()
	defer d.m.RUnlock()
	return d.version
}

// Returns the whole document as a string.
func (d *Document) String() string {
	d.m.RLock()
	defer d.m.RUnlock()
	return strings.Join(d.lines, lineDeliminator)
}

// Retrieve a specific line in the document, without its line terminator. If
// the index is out of range (or negative), an error is returned.
func (d *Document) Line(i int) (string, error) {
	d.m.RLock()
	defer d.m.RUnlock()
	if i < 0 {
		return "", fmt.Errorf("Cannot access negative line")
	}
	if i >= len(d.lines) {
		return "", fmt.Errorf("Line index is %d but there are only %d lines", i, len(d.lines))
	}
	return strings.TrimSuffix(d.lines[i], "\r"), nil
}

func (d *Document) LineLen() int {
	d.m.RLock()
	defer d.m.RUnlock()
	return len(d.lines)
}

// Resolve a position to a line index and a byte offset into that line. LSP
// characters count UTF-16 code units. Calling byteOffset requires holding any
// lock on the document.
func (d *Document) byteOffset(p protocol.Position) (int, error) {
	if int(p.Line) >= len(d.lines) {
		return 0, fmt.Errorf("Invalid position: line %d out of bounds for document with %d lines", p.Line, len(d.lines))
	}
	line := d.lines[p.Line]
	offset, ok := util.UTF16Offset(line, p.Character)
	if !ok {
		return 0, fmt.Errorf("Invalid position: character %d out of bound on line %d (len = %d)",
			p.Character, p.Line, len(line))
	}
	return offset, nil
}

// acceptChange implements the change on the document. Calling acceptChange
// correctly requires holding a write lock on the document.
func (d *Document) acceptChange(change protocol.TextDocumentContentChangeEvent) error {
	var defRange protocol.Range
	if change.Range == defRange && change.RangeLength == 0 {
		// This indicates that the whole document should be changed.
		d.lines = strings.Split(change.Text, lineDeliminator)
		return nil
	}
	s, e := change.Range.Start, change.Range.End
	if s.Line > e.Line || (s.Line == e.Line && s.Character > e.Character) {
		return fmt.Errorf("Invalid range: start %v is after end %v", s, e)
	}
	start, err := d.byteOffset(s)
	if err != nil {
		return err
	}
	end, err := d.byteOffset(e)
	if err != nil {
		return err
	}

	// Splice the new text between the kept head of the start line and the kept
	// tail of the end line.
	inserted := strings.Split(d.lines[s.Line][:start]+change.Text+d.lines[e.Line][end:], lineDeliminator)
	contract.Assertf(len(inserted) > 0, "strings.Split never returns an empty slice")

	lines := make([]string, 0, len(d.lines)-int(e.Line-s.Line)+len(inserted)-1)
	lines = append(lines, d.lines[:s.Line]...)
	lines = append(lines, inserted...)
	lines = append(lines, d.lines[e.Line+1:]...)
	d.lines = lines
	return nil
}
