// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command kb loads, inspects and serves concept knowledge bases.
//
// A knowledge base is described by a YAML document of concepts, attributes,
// derived concepts and values. The subcommands check a document, resolve
// attribute values, print the concept hierarchy, list derived concept
// members, normalize a document, and serve it over HTTP.
//
// Usage:
//
//	kb check campus.yaml
//	kb query campus.yaml Alice email --explain
//	kb query campus.yaml Bob room --constraint year:==:2010
//	kb tree campus.yaml --individuals
//	kb classify campus.yaml
//	kb export campus.yaml -o normalized.yaml
//	kb serve --config kb.yaml --document campus.yaml --watch
//
// Example requests against "kb serve":
//
//	curl http://127.0.0.1:12230/v1/kb/health
//	curl 'http://127.0.0.1:12230/v1/kb/concepts/Bob/values/email?explain=true'
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
