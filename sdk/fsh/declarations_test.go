// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanDeclarations(t *testing.T) {
	t.Parallel()
	text := `Alias: $SCT = http://snomed.info/sct

Profile: CancerPatient
Parent: Patient
  Extension :  TumorSize
* extension contains TumorSize named tumorSize 0..1

CodeSystem: TumorCS
ValueSet: TumorVS
Instance: ExamplePatient
InstanceOf: CancerPatient
Mapping: PatientToArgonaut
RuleSet: Narrative(status, text)
Invariant: inv-1
Resource: Specimen2
Logical: Tumor
`
	assert.Equal(t, []Declaration{
		{Name: "CancerPatient", Kind: Profile, Line: 2},
		{Name: "TumorSize", Kind: Extension, Line: 4},
		{Name: "TumorCS", Kind: CodeSystem, Line: 7},
		{Name: "TumorVS", Kind: ValueSet, Line: 8},
		{Name: "ExamplePatient", Kind: Instance, Line: 9},
		{Name: "PatientToArgonaut", Kind: Mapping, Line: 11},
		{Name: "Narrative", Kind: RuleSet, Line: 12},
		{Name: "inv-1", Kind: Invariant, Line: 13},
		{Name: "Specimen2", Kind: Resource, Line: 14},
		{Name: "Tumor", Kind: Logical, Line: 15},
	}, ScanDeclarations(text))
}

func TestScanDeclarationsIgnoresCommentsAndStrings(t *testing.T) {
	t.Parallel()
	text := "// Profile: LineComment\n" +
		"Profile: Kept // Profile: Trailing\n" +
		"/* Profile: Inline */ Extension: AfterComment\n" +
		"/*\n" +
		"ValueSet: InBlock\n" +
		"*/\n" +
		"* ^description = \"\"\"\n" +
		"CodeSystem: InString\n" +
		"\"\"\"\n" +
		"* ^title = \"Profile: Quoted\"\n" +
		"Invariant: \n" +
		"Logical: Last\r\n"
	assert.Equal(t, []Declaration{
		{Name: "Kept", Kind: Profile, Line: 1},
		{Name: "AfterComment", Kind: Extension, Line: 2},
		{Name: "Last", Kind: Logical, Line: 11},
	}, ScanDeclarations(text))
}

func TestScanDeclarationsEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ScanDeclarations(""))
	assert.Empty(t, ScanDeclarations("* name 1..1\n"))
}

func TestParseEntityKind(t *testing.T) {
	t.Parallel()
	for _, kind := range AllEntityKinds {
		parsed, ok := ParseEntityKind(kind.String())
		assert.True(t, ok, kind.String())
		assert.Equal(t, kind, parsed)
	}
	_, ok := ParseEntityKind("Alias")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", EntityKind(0).String())
}
