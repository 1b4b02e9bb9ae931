// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fhir

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardhealth/fsh-lsp/sdk/fsh"
)

func sampleEntities() FhirEntities {
	return FhirEntities{
		Resources:   []fsh.CandidateItem{{Label: "Patient"}},
		Extensions:  []fsh.CandidateItem{{Label: "goal-reasonRejected"}},
		CodeSystems: []fsh.CandidateItem{{Label: "composition-attestation-mode"}},
		ValueSets:   []fsh.CandidateItem{{Label: "goal-start-event"}},
	}
}

func TestProcessPackageContents(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.ProcessPackageContents(PackageContents{
		Files: []FileInfo{
			{
				Filename:     "ValueSet-some-value-set.json",
				ResourceType: "ValueSet",
				ID:           "some-value-set",
				URL:          "http://hl7.org/fhir/ValueSet/some-value-set",
			},
			{
				Filename:     "SearchParameter-SomeInterestingResource-feature.json",
				ResourceType: "SearchParameter",
				ID:           "SomeInterestingResource-feature",
				URL:          "http://hl7.org/fhir/SearchParameter/SomeInterestingResource-feature",
				Type:         "token",
			},
			{
				Filename:     "CodeSystem-some-code-system.json",
				ResourceType: "CodeSystem",
				ID:           "some-code-system",
				URL:          "http://terminology.hl7.org/CodeSystem/some-code-system",
			},
			{
				Filename:     "StructureDefinition-SomeInterestingResource.json",
				ResourceType: "StructureDefinition",
				ID:           "SomeInterestingResource",
				URL:          "http://hl7.org/fhir/StructureDefinition/SomeInterestingResource",
				Kind:         "resource",
				Type:         "SomeInterestingResource",
			},
			{
				Filename:     "StructureDefinition-some-profile.json",
				ResourceType: "StructureDefinition",
				ID:           "some-profile",
				URL:          "http://hl7.org/fhir/StructureDefinition/some-profile",
				Kind:         "resource",
				Type:         "SomeInterestingResource",
			},
			{
				Filename:     "StructureDefinition-useful-extension.json",
				ResourceType: "StructureDefinition",
				ID:           "useful-extension",
				URL:          "http://hl7.org/fhir/StructureDefinition/useful-extension",
				Kind:         "complex-type",
				Type:         "Extension",
			},
		},
	})
	assert.Equal(t, FhirEntities{
		Resources:   []fsh.CandidateItem{{Label: "SomeInterestingResource", Detail: "FHIR Resource"}},
		Extensions:  []fsh.CandidateItem{{Label: "useful-extension", Detail: "FHIR Extension"}},
		CodeSystems: []fsh.CandidateItem{{Label: "some-code-system", Detail: "FHIR CodeSystem"}},
		ValueSets:   []fsh.CandidateItem{{Label: "some-value-set", Detail: "FHIR ValueSet"}},
	}, index.Entities())
}

func TestProcessPackageContentsReplacesWholesale(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.setEntities(sampleEntities())
	index.ProcessPackageContents(PackageContents{Files: []FileInfo{{
		ResourceType: "ValueSet",
		ID:           "only-value-set",
	}}})
	assert.Equal(t, FhirEntities{
		Resources:   []fsh.CandidateItem{},
		Extensions:  []fsh.CandidateItem{},
		CodeSystems: []fsh.CandidateItem{},
		ValueSets:   []fsh.CandidateItem{{Label: "only-value-set", Detail: "FHIR ValueSet"}},
	}, index.Entities())
}

func TestProcessPackageContentsEmptyKeepsEntities(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.setEntities(sampleEntities())
	index.ProcessPackageContents(PackageContents{Files: []FileInfo{}})
	assert.Equal(t, sampleEntities(), index.Entities())
	index.ProcessPackageContents(PackageContents{})
	assert.Equal(t, sampleEntities(), index.Entities())
}

func TestProcessPackageContentsOnlyIgnoredRecords(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.ProcessPackageContents(PackageContents{Files: []FileInfo{
		{ResourceType: "StructureDefinition", ID: "foo-profile", Kind: "resource", Type: "Foo"},
		{ResourceType: "SearchParameter", ID: "Foo-name"},
	}})
	assert.Equal(t, emptyEntities(), index.Entities())
	assert.Zero(t, index.Len())
}

func TestClassifyNewTypeAgainstConstraint(t *testing.T) {
	t.Parallel()
	kind, ok := classify(FileInfo{ResourceType: "StructureDefinition", ID: "Foo", Kind: "resource", Type: "Foo"})
	assert.True(t, ok)
	assert.Equal(t, fsh.Resource, kind)

	_, ok = classify(FileInfo{ResourceType: "StructureDefinition", ID: "foo-profile", Kind: "resource", Type: "Foo"})
	assert.False(t, ok)

	_, ok = classify(FileInfo{ResourceType: "StructureDefinition", ID: "HumanName", Kind: "complex-type", Type: "HumanName"})
	assert.False(t, ok)
}

func TestFhirItems(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.setEntities(sampleEntities())

	assert.Equal(t, []fsh.CandidateItem{{Label: "goal-reasonRejected"}}, index.FhirItems(fsh.Extension))

	items := index.FhirItems(fsh.Resource, fsh.CodeSystem, fsh.ValueSet)
	assert.Len(t, items, 3)
	assert.Subset(t, items, []fsh.CandidateItem{
		{Label: "Patient"},
		{Label: "composition-attestation-mode"},
		{Label: "goal-start-event"},
	})
}

func TestFhirItemsIgnoresOtherKinds(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	index.setEntities(sampleEntities())

	assert.Empty(t, index.FhirItems(fsh.Profile, fsh.Logical, fsh.Invariant))
	assert.NotNil(t, index.FhirItems())
	// Profile contributes nothing, so a Parent: of a Profile only sees
	// resources and extensions from the package.
	assert.Equal(t, []fsh.CandidateItem{{Label: "Patient"}, {Label: "goal-reasonRejected"}},
		index.FhirItems(fsh.Profile, fsh.Resource, fsh.Extension))
	// Repeated kinds are only listed once.
	assert.Equal(t, []fsh.CandidateItem{{Label: "Patient"}}, index.FhirItems(fsh.Resource, fsh.Resource))
}

func TestIndexConcurrentAccess(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	contents := PackageContents{Files: []FileInfo{
		{ResourceType: "StructureDefinition", ID: "Patient", Kind: "resource", Type: "Patient"},
		{ResourceType: "ValueSet", ID: "goal-start-event"},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			index.ProcessPackageContents(contents)
		}()
		go func() {
			defer wg.Done()
			items := index.FhirItems(fsh.Resource, fsh.ValueSet)
			// Either the empty index or the complete package, never a mix.
			assert.Contains(t, []int{0, 2}, len(items))
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, index.Len())
}
