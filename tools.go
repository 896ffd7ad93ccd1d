// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

//go:build tools

// Package main pins the test runner used by the integration suites.
package main

import (
	// Runs `ginkgo -tags integration ./internal/store/...`.
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
