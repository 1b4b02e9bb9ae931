// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The fhir package maintains the completion index of a FHIR definition
// package: the resources, extensions, code systems and value sets that FSH
// authors may reference without declaring them.
//
// contents.go describes a package's file manifest and how its entries are
// classified.
// index.go holds the classified entries and answers lookups.
// loader.go finds a manifest inside a FHIR package cache and feeds it to the
// index.
package fhir

import (
	"github.com/standardhealth/fsh-lsp/sdk/fsh"
)

// ManifestName is the name of the file listing the contents of a package.
const ManifestName = ".index.json"

// PackageContents is the decoded manifest of a FHIR package.
type PackageContents struct {
	IndexVersion int        `json:"index-version,omitempty"`
	Files        []FileInfo `json:"files"`
}

// FileInfo describes a single definition in a package. Kind and Type are only
// set for StructureDefinitions.
type FileInfo struct {
	Filename     string `json:"filename"`
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	URL          string `json:"url"`
	Version      string `json:"version,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Type         string `json:"type,omitempty"`
}

// The kinds of names a FHIR package contributes, in lookup order.
var indexedKinds = []fsh.EntityKind{fsh.Resource, fsh.Extension, fsh.CodeSystem, fsh.ValueSet}

// classify decides which category a manifest entry belongs to.
//
// A StructureDefinition counts as a Resource only when it defines a new type
// (its type is its own id). Constraints on an existing type are profiles, and
// profiles come from the workspace, not from the package.
func classify(f FileInfo) (fsh.EntityKind, bool) {
	switch f.ResourceType {
	case "StructureDefinition":
		switch {
		case f.Kind == "resource" && f.Type == f.ID:
			return fsh.Resource, true
		case f.Kind == "complex-type" && f.Type == "Extension":
			return fsh.Extension, true
		}
	case "CodeSystem":
		return fsh.CodeSystem, true
	case "ValueSet":
		return fsh.ValueSet, true
	}
	return 0, false
}

func itemFor(kind fsh.EntityKind, f FileInfo) fsh.CandidateItem {
	return fsh.CandidateItem{
		Label:  f.ID,
		Detail: "FHIR " + kind.String(),
	}
}
