// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fhir

import "fmt"

// DefinitionsNotFoundError indicates that the configured FHIR cache path does
// not exist. The user needs to point the server at a different directory.
type DefinitionsNotFoundError struct {
	Path string
	Err  error
}

func (e *DefinitionsNotFoundError) Error() string {
	msg := fmt.Sprintf("Couldn't load FHIR definitions from path %s", e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DefinitionsNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestUnreadableError indicates that the FHIR cache exists, but no
// package manifest could be found in it or the manifest is not valid JSON.
// Reinstalling the package usually fixes it.
type ManifestUnreadableError struct {
	Path string
	Err  error
}

func (e *ManifestUnreadableError) Error() string {
	msg := fmt.Sprintf("Couldn't read definition information from FHIR package at %s", e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestUnreadableError) Unwrap() error {
	return e.Err
}
