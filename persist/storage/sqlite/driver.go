package sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverPure is the pure Go driver registered by modernc.org/sqlite.
	DriverPure = "sqlite"
	// DriverCGO is the driver registered by github.com/mattn/go-sqlite3 when
	// cgo is enabled.
	DriverCGO = "sqlite3"
)
