// Copyright 2022, Pulumi Corporation.  All rights reserved.

package version

// Version is set at build time with
// -ldflags "-X github.com/standardhealth/fsh-lsp/sdk/version.Version=...".
var Version = "0.1.0-dev"
