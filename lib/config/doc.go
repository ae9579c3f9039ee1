// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the description of a space from a single file.
//
// The file is named by the PATHSPACE_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). There is no discovery
// and no fallback location. YAML (.yaml, .yml) and JSON with comments
// (.json, .jsonc) are accepted.
//
// Mount fields support ${VAR} and ${VAR:-default} expansion, so a
// filesystem mount can live under ${HOME} or a directory chosen at
// deploy time. Nothing else is read from the environment.
//
// Key exports:
//
//   - [Config] -- space tuning, mounts, capability grants, logging
//   - [Default] -- the values a file is applied over
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// The config only describes a space; cmd/pathspace assembles it.
package config
