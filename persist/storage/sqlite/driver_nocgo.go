//go:build !cgo

package sqlite

func CGOAvailable() bool { return false }
