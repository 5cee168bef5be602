//go:build mage

// Package main provides build targets for healthlog using Mage.
//
// Usage:
//
//	mage build        Compile the healthlog binary to bin/
//	mage install      Install healthlog to GOPATH/bin
//	mage clean        Remove build artifacts
//	mage test:all     Run every test
//	mage test:race    Run every test with the race detector
//	mage test:cover   Write coverage.out and print the per-function summary
//	mage lint         Run golangci-lint
//	mage stats        Print Go line counts as text or JSON
package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}
