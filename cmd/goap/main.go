// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command goap plans, checks and simulates the meal-assistant build-out.
//
// Usage:
//
//	goap plan --goal mvp
//	goap plan --goal-cond auth_implemented=true --state repo_initialized
//	goap validate --plan init_repository,configure_ci
//	goap execute --goal foundation
//	goap summary --goal full --weight 5
//	goap graph --goal foundation --format dot
//	goap catalog
//	goap serve --addr :8080
//
// Configuration is layered: defaults, --config YAML file, GOAP_*
// environment variables, then flags.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			os.Stderr.WriteString("Error: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}
