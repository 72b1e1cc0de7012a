//go:build cgo

package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

// CGOAvailable reports whether DriverCGO is registered
func CGOAvailable() bool { return true }
