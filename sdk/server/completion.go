// Copyright 2022, Pulumi Corporation.  All rights reserved.

package server

import (
	"go.lsp.dev/protocol"

	"github.com/standardhealth/fsh-lsp/sdk/fhir"
	"github.com/standardhealth/fsh-lsp/sdk/fsh"
	"github.com/standardhealth/fsh-lsp/sdk/lsp"
	"github.com/standardhealth/fsh-lsp/sdk/util"
)

// Candidates collects every suggestion valid at pos: names declared in the
// workspace, names from the FHIR index, then the site's built-in names. It
// returns nil when pos is not a completion site.
func Candidates(doc fsh.LineReader, pos protocol.Position, workspace *fsh.Workspace, index *fhir.Index) []fsh.CandidateItem {
	ctx := fsh.AllowedTypesAndExtraNames(doc, pos)
	if ctx == nil {
		return nil
	}
	items := []fsh.CandidateItem{}
	if len(ctx.AllowedTypes) > 0 {
		items = append(items, workspace.EntityItems(ctx.AllowedTypes...)...)
		items = append(items, index.FhirItems(ctx.AllowedTypes...)...)
	}
	return append(items, ctx.ExtraNames...)
}

func (s *server) completion(client lsp.Client, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	u := params.TextDocument.URI
	doc, ok := s.getDocument(u)
	if !ok {
		client.LogWarningf("Completion requested for unopened file %s", u.Filename())
		return nil, nil
	}
	items := Candidates(doc, params.Position, s.workspace, s.fhir)
	if items == nil {
		return nil, nil
	}
	client.LogDebugf("Offering %d completions at %s:%d:%d",
		len(items), u.Filename(), params.Position.Line, params.Position.Character)
	return &protocol.CompletionList{
		Items: util.MapOver(items, completionItem),
	}, nil
}

func completionItem(item fsh.CandidateItem) protocol.CompletionItem {
	kind := protocol.CompletionItemKindClass
	if item.Detail == fsh.Invariant.String() {
		kind = protocol.CompletionItemKindConstant
	}
	return protocol.CompletionItem{
		Label:            item.Label,
		Detail:           item.Detail,
		Kind:             kind,
		InsertTextFormat: protocol.InsertTextFormatPlainText,
		InsertTextMode:   protocol.InsertTextModeAsIs,
	}
}
