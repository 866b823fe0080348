package config

import "errors"

// ErrNotFound is returned when the ledger holds no matching migration.
var ErrNotFound = errors.New("migration not found")
