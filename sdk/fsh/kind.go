// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The fsh package understands just enough of FHIR Shorthand to drive
// completion: which entity kinds exist, which names a workspace declares, and
// which kinds of names are valid at a given cursor position.
package fsh

// EntityKind is the kind of a named FSH entity. The set is closed: every kind
// the completion engine reasons about is listed here.
type EntityKind int

const (
	Profile EntityKind = iota + 1
	Extension
	Logical
	Resource
	CodeSystem
	ValueSet
	Invariant
	Instance
	Mapping
	RuleSet
)

var entityKindNames = map[EntityKind]string{
	Profile:    "Profile",
	Extension:  "Extension",
	Logical:    "Logical",
	Resource:   "Resource",
	CodeSystem: "CodeSystem",
	ValueSet:   "ValueSet",
	Invariant:  "Invariant",
	Instance:   "Instance",
	Mapping:    "Mapping",
	RuleSet:    "RuleSet",
}

// AllEntityKinds lists every kind in declaration keyword order.
var AllEntityKinds = []EntityKind{
	Profile, Extension, Logical, Resource, CodeSystem,
	ValueSet, Invariant, Instance, Mapping, RuleSet,
}

// String returns the FSH keyword that declares the kind.
func (k EntityKind) String() string {
	if s, ok := entityKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// ParseEntityKind maps an FSH declaration keyword (without the trailing
// colon) to its kind.
func ParseEntityKind(s string) (EntityKind, bool) {
	for k, name := range entityKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// CandidateItem is a single completion suggestion. Items are plain values and
// compare equal when both label and detail match.
type CandidateItem struct {
	Label  string
	Detail string
}

// CompletionContext is what the resolver knows about a completion site: the
// entity kinds whose names are valid there, and names that are always valid
// but are not declared anywhere.
type CompletionContext struct {
	AllowedTypes []EntityKind
	ExtraNames   []CandidateItem
}
