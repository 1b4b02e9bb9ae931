// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fhir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardhealth/fsh-lsp/sdk/fsh"
)

type countingProcessor struct {
	calls    int
	contents PackageContents
}

func (p *countingProcessor) ProcessPackageContents(contents PackageContents) {
	p.calls++
	p.contents = contents
}

func (p *countingProcessor) ids() []string {
	ids := make([]string, 0, len(p.contents.Files))
	for _, f := range p.contents.Files {
		ids = append(ids, f.ID)
	}
	return ids
}

var testCache = filepath.Join("testdata", ".fhir")

func TestUpdateFhirEntitiesFromEachCacheLevel(t *testing.T) {
	t.Parallel()
	core := filepath.Join(testCache, "packages", "hl7.fhir.r4.core#4.0.1")
	for _, path := range []string{
		testCache,
		filepath.Join(testCache, "packages"),
		core,
		filepath.Join(core, "package"),
	} {
		path := path
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			p := &countingProcessor{}
			require.NoError(t, NewUpdater(p).UpdateFhirEntities(context.Background(), path))
			assert.Equal(t, 1, p.calls)
			assert.Len(t, p.contents.Files, 8)
		})
	}
}

func TestUpdateFhirEntitiesEmptyPath(t *testing.T) {
	t.Parallel()
	p := &countingProcessor{}
	assert.NoError(t, NewUpdater(p).UpdateFhirEntities(context.Background(), ""))
	assert.Zero(t, p.calls)
}

func TestUpdateFhirEntitiesMissingPath(t *testing.T) {
	t.Parallel()
	p := &countingProcessor{}
	err := NewUpdater(p).UpdateFhirEntities(context.Background(), filepath.Join("nonsense", "path"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Couldn't load FHIR definitions from path")
	var notFound *DefinitionsNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Zero(t, p.calls)
}

func TestUpdateFhirEntitiesUnreadableManifest(t *testing.T) {
	t.Parallel()
	for _, dir := range []string{".fhir-no-index", ".fhir-not-json"} {
		dir := dir
		t.Run(dir, func(t *testing.T) {
			t.Parallel()
			p := &countingProcessor{}
			err := NewUpdater(p).UpdateFhirEntities(context.Background(), filepath.Join("testdata", dir))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Couldn't read definition information from FHIR package")
			var unreadable *ManifestUnreadableError
			assert.True(t, errors.As(err, &unreadable))
			assert.Zero(t, p.calls)
		})
	}
}

func TestUpdateFhirEntitiesCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &countingProcessor{}
	assert.ErrorIs(t, NewUpdater(p).UpdateFhirEntities(ctx, testCache), context.Canceled)
	assert.Zero(t, p.calls)
}

func TestUpdateFhirEntitiesWithDependencies(t *testing.T) {
	t.Parallel()
	p := &countingProcessor{}
	u := NewUpdater(p)
	u.Packages = []PackageRef{
		DefaultCorePackage,
		{ID: "hl7.fhir.us.core", Version: "3.1.1"},
		{ID: "hl7.fhir.uv.ips", Version: "1.0.0"},
	}
	require.NoError(t, u.UpdateFhirEntities(context.Background(), testCache))
	assert.Equal(t, 1, p.calls)
	assert.Len(t, p.contents.Files, 9)
	assert.Contains(t, p.ids(), "us-core-race")
}

func TestUpdateFhirEntitiesMissingCorePackage(t *testing.T) {
	t.Parallel()
	p := &countingProcessor{}
	u := NewUpdater(p)
	u.Packages = []PackageRef{{ID: "hl7.fhir.r5.core", Version: "5.0.0"}}
	err := u.UpdateFhirEntities(context.Background(), testCache)
	var unreadable *ManifestUnreadableError
	assert.True(t, errors.As(err, &unreadable))
	assert.Zero(t, p.calls)
}

func TestUpdateFhirEntitiesIntoIndex(t *testing.T) {
	t.Parallel()
	index := NewIndex()
	require.NoError(t, NewUpdater(index).UpdateFhirEntities(context.Background(), testCache))
	assert.Equal(t, 5, index.Len())
	assert.Equal(t, []string{"Patient", "Observation"}, labels(index.Entities().Resources))
	assert.Equal(t, []string{"goal-reasonRejected"}, labels(index.Entities().Extensions))
}

func TestLocateManifestPicksNewestUnpinnedVersion(t *testing.T) {
	t.Parallel()
	for _, version := range []string{"", "latest"} {
		manifest, err := LocateManifest(testCache, PackageRef{ID: "hl7.fhir.us.core", Version: version})
		require.NoError(t, err)
		assert.Equal(t,
			filepath.Join(testCache, "packages", "hl7.fhir.us.core#6.1.0", "package", ManifestName),
			manifest)
	}

	manifest, err := LocateManifest(testCache, PackageRef{ID: "hl7.fhir.us.core", Version: "3.1.1"})
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(testCache, "packages", "hl7.fhir.us.core#3.1.1", "package", ManifestName),
		manifest)

	_, err = LocateManifest(testCache, PackageRef{ID: "hl7.fhir.uv.ips"})
	assert.Error(t, err)
}

func TestParsePackageRef(t *testing.T) {
	t.Parallel()
	assert.Equal(t, PackageRef{ID: "hl7.fhir.r4.core", Version: "4.0.1"}, ParsePackageRef("hl7.fhir.r4.core#4.0.1"))
	assert.Equal(t, PackageRef{ID: "hl7.fhir.r4.core"}, ParsePackageRef("hl7.fhir.r4.core"))
	assert.Equal(t, "hl7.fhir.r4.core#4.0.1", DefaultCorePackage.String())
	assert.Equal(t, "hl7.fhir.r4.core", PackageRef{ID: "hl7.fhir.r4.core"}.String())
}

func TestCorePackageFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, PackageRef{ID: "hl7.fhir.r4.core", Version: "4.0.1"}, CorePackageFor("4.0.1"))
	assert.Equal(t, PackageRef{ID: "hl7.fhir.r4b.core", Version: "4.3.0"}, CorePackageFor("4.3.0"))
	assert.Equal(t, PackageRef{ID: "hl7.fhir.r5.core", Version: "5.0.0"}, CorePackageFor("5.0.0"))
	assert.Equal(t, DefaultCorePackage, CorePackageFor("3.0.2"))
	assert.Equal(t, DefaultCorePackage, CorePackageFor("current"))
}

func labels(items []fsh.CandidateItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}
