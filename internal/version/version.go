/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package version exposes build information. Version and Commit are
// overridden at link time:
//
//	go build -ldflags "-X cardcomposer/internal/version.Version=1.2.0"
package version

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
)

// String returns the version, with the commit when known.
func String() string {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	if Commit != "" {
		return v + " (" + Commit + ")"
	}
	return v
}
