/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "fmt"

// Version is the current version of Grimnir Signage.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_signage/internal/version.Version=X.Y.Z
var Version = "0.9.0"

// Commit is the source revision, set at build time.
var Commit = "dev"

// String returns the version with its commit.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

// UserAgent identifies outbound HTTP requests made by players.
func UserAgent() string {
	return "grimnir-signage/" + Version
}
