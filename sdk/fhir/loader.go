// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fhir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// A PackageRef names a FHIR package in the cache. An empty or "latest"
// version selects the newest version present.
type PackageRef struct {
	ID      string
	Version string
}

// DefaultCorePackage is loaded when nothing else is configured.
var DefaultCorePackage = PackageRef{ID: "hl7.fhir.r4.core", Version: "4.0.1"}

// ParsePackageRef parses the `<id>#<version>` form used for cache directories.
func ParsePackageRef(s string) PackageRef {
	id, version, _ := strings.Cut(s, "#")
	return PackageRef{ID: id, Version: version}
}

func (r PackageRef) String() string {
	if r.Version == "" {
		return r.ID
	}
	return r.ID + "#" + r.Version
}

func (r PackageRef) pinned() bool {
	return r.Version != "" && r.Version != "latest"
}

// CorePackageFor returns the core package of a FHIR release.
func CorePackageFor(fhirVersion string) PackageRef {
	v, err := semver.ParseTolerant(fhirVersion)
	if err != nil {
		return DefaultCorePackage
	}
	switch {
	case v.Major == 4 && v.Minor == 0:
		return PackageRef{ID: "hl7.fhir.r4.core", Version: fhirVersion}
	case v.Major == 4 && v.Minor == 3:
		return PackageRef{ID: "hl7.fhir.r4b.core", Version: fhirVersion}
	case v.Major == 5:
		return PackageRef{ID: "hl7.fhir.r5.core", Version: fhirVersion}
	default:
		return DefaultCorePackage
	}
}

// LocateManifest finds the manifest of pkg below path. path may be any of:
//
//	~/.fhir                                   the cache root
//	~/.fhir/packages                          the packages directory
//	~/.fhir/packages/hl7.fhir.r4.core#4.0.1   a package directory
//	~/.fhir/packages/hl7.fhir.r4.core#4.0.1/package
//
// When path already is a package (the last two forms), pkg is not consulted.
func LocateManifest(path string, pkg PackageRef) (string, error) {
	for _, candidate := range []string{
		filepath.Join(path, ManifestName),
		filepath.Join(path, "package", ManifestName),
	} {
		if isFile(candidate) {
			return candidate, nil
		}
	}
	packages, ok := packagesDir(path)
	if !ok {
		return "", fmt.Errorf("no %s or packages directory found in %s", ManifestName, path)
	}
	return packageManifest(packages, pkg)
}

// packagesDir returns the cache's packages directory given either the cache
// root or the packages directory itself.
func packagesDir(path string) (string, bool) {
	if p := filepath.Join(path, "packages"); isDir(p) {
		return p, true
	}
	if filepath.Base(filepath.Clean(path)) == "packages" && isDir(path) {
		return path, true
	}
	return "", false
}

// packageManifest finds the manifest of pkg inside a packages directory.
func packageManifest(packages string, pkg PackageRef) (string, error) {
	dir, err := packageDir(packages, pkg)
	if err != nil {
		return "", err
	}
	manifest := filepath.Join(dir, "package", ManifestName)
	if !isFile(manifest) {
		return "", fmt.Errorf("package %s has no %s", pkg, ManifestName)
	}
	return manifest, nil
}

// packageDir resolves pkg to its directory, choosing the highest version when
// pkg is not pinned to one.
func packageDir(packages string, pkg PackageRef) (string, error) {
	if pkg.pinned() {
		dir := filepath.Join(packages, pkg.String())
		if !isDir(dir) {
			return "", fmt.Errorf("package %s is not in the cache at %s", pkg, packages)
		}
		return dir, nil
	}
	entries, err := os.ReadDir(packages)
	if err != nil {
		return "", err
	}
	var best string
	var bestVersion semver.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ref := ParsePackageRef(e.Name())
		if ref.ID != pkg.ID {
			continue
		}
		v, err := semver.ParseTolerant(ref.Version)
		if err != nil {
			continue
		}
		if best == "" || v.GT(bestVersion) {
			best, bestVersion = e.Name(), v
		}
	}
	if best == "" {
		return "", fmt.Errorf("no version of package %s is in the cache at %s", pkg.ID, packages)
	}
	return filepath.Join(packages, best), nil
}

// LoadPackageContents reads and decodes a package manifest.
func LoadPackageContents(manifest string) (PackageContents, error) {
	var contents PackageContents
	data, err := os.ReadFile(manifest)
	if err != nil {
		return contents, err
	}
	if err := json.Unmarshal(data, &contents); err != nil {
		return contents, fmt.Errorf("invalid manifest %s: %w", manifest, err)
	}
	return contents, nil
}

// A PackageProcessor consumes decoded package contents. *Index is the
// production implementation.
type PackageProcessor interface {
	ProcessPackageContents(contents PackageContents)
}

// Updater refreshes a PackageProcessor from a FHIR package cache.
type Updater struct {
	Processor PackageProcessor
	// The packages to load. The first is the core package and must be
	// present; the others are loaded when they can be found. Defaults to
	// DefaultCorePackage.
	Packages []PackageRef

	Logger *zap.SugaredLogger
}

func NewUpdater(processor PackageProcessor) *Updater {
	return &Updater{
		Processor: processor,
		Logger:    zap.NewNop().Sugar(),
	}
}

func (u *Updater) packages() []PackageRef {
	if len(u.Packages) == 0 {
		return []PackageRef{DefaultCorePackage}
	}
	return u.Packages
}

// UpdateFhirEntities loads the configured packages from cachePath and hands
// their combined contents to the processor exactly once.
//
// An empty cachePath means FHIR support is not configured and nothing
// happens. Otherwise a missing cachePath fails with a
// *DefinitionsNotFoundError, and a missing or malformed core manifest fails
// with a *ManifestUnreadableError. The processor is not called on failure.
// Once started, the update runs to completion; ctx is only checked before
// any work is done.
func (u *Updater) UpdateFhirEntities(ctx context.Context, cachePath string) error {
	if cachePath == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(cachePath); err != nil {
		return &DefinitionsNotFoundError{Path: cachePath, Err: err}
	}

	refs := u.packages()
	contents, err := u.loadCore(cachePath, refs[0])
	if err != nil {
		return &ManifestUnreadableError{Path: cachePath, Err: err}
	}
	for _, dep := range refs[1:] {
		files, err := u.loadDependency(cachePath, dep)
		if err != nil {
			u.Logger.Warnf("Skipping FHIR package %s: %v", dep, err)
			continue
		}
		contents.Files = append(contents.Files, files...)
	}

	u.Logger.Infof("Loaded %d FHIR definitions from %s", len(contents.Files), cachePath)
	u.Processor.ProcessPackageContents(contents)
	return nil
}

func (u *Updater) loadCore(cachePath string, ref PackageRef) (PackageContents, error) {
	manifest, err := LocateManifest(cachePath, ref)
	if err != nil {
		return PackageContents{}, err
	}
	u.Logger.Debugf("Reading FHIR package manifest %s", manifest)
	return LoadPackageContents(manifest)
}

var errNoPackagesDir = errors.New("cache path does not contain a packages directory")

func (u *Updater) loadDependency(cachePath string, ref PackageRef) ([]FileInfo, error) {
	packages, ok := packagesDir(cachePath)
	if !ok {
		return nil, errNoPackagesDir
	}
	manifest, err := packageManifest(packages, ref)
	if err != nil {
		return nil, err
	}
	contents, err := LoadPackageContents(manifest)
	if err != nil {
		return nil, err
	}
	return contents.Files, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
