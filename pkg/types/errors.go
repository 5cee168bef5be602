package types

import "errors"

// Repository errors.
var (
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidID           = errors.New("invalid entity ID")
	ErrInvalidName         = errors.New("invalid name")
	ErrDuplicateName       = errors.New("name already in use")
	ErrInvalidData         = errors.New("invalid entity data")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrInvalidBundleMember = errors.New("bundle member must reference exactly one of item or bundle")
)

// Backup errors.
var (
	ErrInvalidBackup      = errors.New("invalid backup")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
	ErrInvalidImportMode  = errors.New("invalid import mode")
)
