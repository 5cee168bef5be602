package types

import (
	"errors"
	"fmt"
)

// Config selects the storage backend a Journal attaches to.
type Config struct {
	// Backend is BackendSQLite or BackendFixture.
	Backend string `json:"backend" yaml:"backend"`
	// DataDir holds the database file. Required by BackendSQLite, ignored
	// by BackendFixture.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

const (
	BackendSQLite  = "sqlite"
	BackendFixture = "fixture"
)

var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrDataDirRequired = errors.New("data dir is required")
)

// Validate reports the first problem with c as one of the Config errors.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return ErrBackendEmpty
	case BackendSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("%w for the %s backend", ErrDataDirRequired, c.Backend)
		}
		return nil
	case BackendFixture:
		return nil
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrBackendUnknown, c.Backend, BackendSQLite, BackendFixture)
	}
}
