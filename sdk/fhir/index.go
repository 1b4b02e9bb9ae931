// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fhir

import (
	"sync"

	"github.com/standardhealth/fsh-lsp/sdk/fsh"
	"github.com/standardhealth/fsh-lsp/sdk/util"
)

// FhirEntities holds the completion items of a FHIR package, one list per
// category.
type FhirEntities struct {
	Resources   []fsh.CandidateItem
	Extensions  []fsh.CandidateItem
	CodeSystems []fsh.CandidateItem
	ValueSets   []fsh.CandidateItem
}

func emptyEntities() FhirEntities {
	return FhirEntities{
		Resources:   []fsh.CandidateItem{},
		Extensions:  []fsh.CandidateItem{},
		CodeSystems: []fsh.CandidateItem{},
		ValueSets:   []fsh.CandidateItem{},
	}
}

// list returns a pointer to the list holding kind, or nil if the kind is not
// one a package contributes.
func (e *FhirEntities) list(kind fsh.EntityKind) *[]fsh.CandidateItem {
	switch kind {
	case fsh.Resource:
		return &e.Resources
	case fsh.Extension:
		return &e.Extensions
	case fsh.CodeSystem:
		return &e.CodeSystems
	case fsh.ValueSet:
		return &e.ValueSets
	default:
		return nil
	}
}

// Index is the in-memory index of the last FHIR package processed. It is safe
// for concurrent use.
type Index struct {
	// Guards entities. Readers take the read lock; replacing the entities is a
	// single assignment under the write lock.
	m        sync.RWMutex
	entities FhirEntities
}

func NewIndex() *Index {
	return &Index{entities: emptyEntities()}
}

// ProcessPackageContents replaces the index with the entries of contents.
//
// A manifest without files leaves the index untouched: a caller that could
// not find any definitions must not wipe out a previously loaded package.
func (i *Index) ProcessPackageContents(contents PackageContents) {
	if len(contents.Files) == 0 {
		return
	}
	next := emptyEntities()
	for _, f := range contents.Files {
		kind, ok := classify(f)
		if !ok {
			continue
		}
		l := next.list(kind)
		*l = append(*l, itemFor(kind, f))
	}
	i.setEntities(next)
}

// Entities returns the current contents of the index.
func (i *Index) Entities() FhirEntities {
	i.m.RLock()
	defer i.m.RUnlock()
	return i.entities
}

// setEntities replaces the contents of the index in one step, so readers see
// either the old package or the new one.
func (i *Index) setEntities(e FhirEntities) {
	i.m.Lock()
	defer i.m.Unlock()
	i.entities = e
}

// FhirItems returns the items of every requested category. Kinds that a
// package never contributes, such as Profile, add nothing.
func (i *Index) FhirItems(kinds ...fsh.EntityKind) []fsh.CandidateItem {
	entities := i.Entities()
	items := []fsh.CandidateItem{}
	var seen []fsh.EntityKind
	for _, kind := range kinds {
		if util.SliceContains(seen, kind) {
			continue
		}
		seen = append(seen, kind)
		if l := entities.list(kind); l != nil {
			items = append(items, *l...)
		}
	}
	return items
}

// Len is the total number of items in the index.
func (i *Index) Len() int {
	return len(i.FhirItems(indexedKinds...))
}
