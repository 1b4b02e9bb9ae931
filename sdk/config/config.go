// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The config package reads the settings that decide which FHIR definitions
// are offered for completion: the project's sushi-config.yaml and the
// editor's settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"

	"github.com/standardhealth/fsh-lsp/sdk/fhir"
)

// ProjectFileName is the SUSHI project configuration file.
const ProjectFileName = "sushi-config.yaml"

// Project is the subset of sushi-config.yaml that determines which FHIR
// packages the project builds against.
type Project struct {
	ID           string       `yaml:"id"`
	Canonical    string       `yaml:"canonical"`
	FHIRVersion  stringList   `yaml:"fhirVersion"`
	Dependencies Dependencies `yaml:"dependencies"`
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Dependencies maps package ids to versions. SUSHI allows both
// `id: version` and `id: {version: v, ...}`.
type Dependencies map[string]string

func (d *Dependencies) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: dependencies must be a map", value.Line)
	}
	out := Dependencies{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			out[key.Value] = val.Value
		case yaml.MappingNode:
			var detailed struct {
				Version string `yaml:"version"`
			}
			if err := val.Decode(&detailed); err != nil {
				return err
			}
			out[key.Value] = detailed.Version
		default:
			return fmt.Errorf("line %d: unexpected value for dependency %s", val.Line, key.Value)
		}
	}
	*d = out
	return nil
}

// LoadProject reads a sushi-config.yaml file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	return &p, nil
}

// FindProject looks for sushi-config.yaml in root. A missing file is not an
// error; the returned project is nil.
func FindProject(root string) (*Project, error) {
	path := filepath.Join(root, ProjectFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return LoadProject(path)
}

// Packages lists the FHIR packages the project depends on, core package
// first. A nil project depends on the default core package only.
func (p *Project) Packages() []fhir.PackageRef {
	if p == nil {
		return []fhir.PackageRef{fhir.DefaultCorePackage}
	}
	core := fhir.DefaultCorePackage
	if len(p.FHIRVersion) > 0 {
		core = fhir.CorePackageFor(p.FHIRVersion[0])
	}
	refs := []fhir.PackageRef{core}
	ids := make([]string, 0, len(p.Dependencies))
	for id := range p.Dependencies {
		if id != core.ID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		refs = append(refs, fhir.PackageRef{ID: id, Version: p.Dependencies[id]})
	}
	return refs
}

// Settings are the editor-provided options, sent as initializationOptions or
// through workspace/didChangeConfiguration under the "fsh" key.
type Settings struct {
	FhirCachePath string `json:"fhirCachePath,omitempty"`
}

// ParseSettings decodes settings from an arbitrary LSP payload. Both
// `{"fsh": {...}}` and the bare `{...}` form are accepted. A nil payload
// yields zero settings.
func ParseSettings(payload interface{}) (Settings, error) {
	var s Settings
	if payload == nil {
		return s, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return s, err
	}
	var wrapped struct {
		FSH *Settings `json:"fsh"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	if wrapped.FSH != nil {
		return *wrapped.FSH, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// DefaultFhirCachePath is the cache SUSHI and the FHIR tooling install
// packages into, if it exists.
func DefaultFhirCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".fhir")
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return ""
	}
	return path
}
