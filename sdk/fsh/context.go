// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fsh

import (
	"regexp"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/standardhealth/fsh-lsp/sdk/util"
)

// LineReader gives read-only access to the lines of a document. lsp.Document
// satisfies it.
type LineReader interface {
	Line(i int) (string, error)
}

// Site patterns are matched against the text before the cursor only. Each
// permits a partially typed name at the end.
var (
	instanceOfSite = regexp.MustCompile(`^\s*InstanceOf\s*:\s*[^\s]*$`)
	parentSite     = regexp.MustCompile(`^\s*Parent\s*:\s*[^\s]*$`)
	// `* obeys a, b, ` and `* path obeys a, ` with any number of names
	// already listed.
	obeysSite = regexp.MustCompile(`^\s*\*\s+(?:\S+\s+)?obeys\s+(?:[^\s,]+\s*,\s*)*[^\s,]*$`)
)

var instanceOfContext = CompletionContext{
	AllowedTypes: []EntityKind{Profile, Resource, Extension},
}

var obeysContext = CompletionContext{
	AllowedTypes: []EntityKind{Invariant},
}

// What may follow `Parent:`, keyed by the kind of the entity being declared.
// Kinds missing from the table cannot have a parent.
var parentContexts = map[EntityKind]CompletionContext{
	Profile:   {AllowedTypes: []EntityKind{Profile, Resource, Extension}},
	Extension: {AllowedTypes: []EntityKind{Extension}},
	Logical: {
		AllowedTypes: []EntityKind{Logical, Resource},
		ExtraNames:   []CandidateItem{{Label: "Base"}, {Label: "Element"}},
	},
	Resource: {
		AllowedTypes: []EntityKind{},
		ExtraNames:   []CandidateItem{{Label: "Resource"}, {Label: "DomainResource"}},
	},
}

// A siteMatcher inspects the text before the cursor. matched reports that the
// matcher recognized the site, in which case its result (possibly nil) is
// final.
type siteMatcher func(doc LineReader, line int, prefix string) (ctx *CompletionContext, matched bool)

// Evaluated in order; the first matcher to recognize the site wins.
var siteMatchers = []siteMatcher{
	matchInstanceOf,
	matchObeys,
	matchParent,
}

// AllowedTypesAndExtraNames classifies the completion site at pos. A nil
// result means no entity names should be offered there.
func AllowedTypesAndExtraNames(doc LineReader, pos protocol.Position) *CompletionContext {
	line, err := doc.Line(int(pos.Line))
	if err != nil {
		return nil
	}
	prefix := linePrefix(line, pos.Character)
	for _, match := range siteMatchers {
		if ctx, ok := match(doc, int(pos.Line), prefix); ok {
			return ctx
		}
	}
	return nil
}

func matchInstanceOf(_ LineReader, _ int, prefix string) (*CompletionContext, bool) {
	if !instanceOfSite.MatchString(prefix) {
		return nil, false
	}
	return instanceOfContext.clone(), true
}

func matchObeys(_ LineReader, _ int, prefix string) (*CompletionContext, bool) {
	if !obeysSite.MatchString(prefix) {
		return nil, false
	}
	return obeysContext.clone(), true
}

func matchParent(doc LineReader, line int, prefix string) (*CompletionContext, bool) {
	if !parentSite.MatchString(prefix) {
		return nil, false
	}
	kind, ok := enclosingDeclaration(doc, line)
	if !ok {
		return nil, true
	}
	ctx, ok := parentContexts[kind]
	if !ok {
		return nil, true
	}
	return ctx.clone(), true
}

// enclosingDeclaration finds the last declaration header before line and
// returns the kind it declares. Headers inside comments and multi-line strings
// are skipped the same way ScanDeclarations skips them. Alias headers and
// missing headers report false.
func enclosingDeclaration(doc LineReader, line int) (EntityKind, bool) {
	var st scanState
	keyword := ""
	for i := 0; i < line; i++ {
		text, err := doc.Line(i)
		if err != nil {
			return 0, false
		}
		if kw, _, ok := parseHeader(st.strip(strings.TrimSuffix(text, "\r"))); ok {
			keyword = kw
		}
	}
	return ParseEntityKind(keyword)
}

// linePrefix returns the part of line before the LSP character offset, which
// counts UTF-16 code units.
func linePrefix(line string, character uint32) string {
	i, _ := util.UTF16Offset(line, character)
	return line[:i]
}

func (c CompletionContext) clone() *CompletionContext {
	out := &CompletionContext{
		AllowedTypes: append([]EntityKind{}, c.AllowedTypes...),
		ExtraNames:   append([]CandidateItem{}, c.ExtraNames...),
	}
	return out
}
