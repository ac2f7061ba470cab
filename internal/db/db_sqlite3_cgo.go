//go:build cgo && sqlite3_cgo

package db

import _ "github.com/mattn/go-sqlite3"

// Built with -tags sqlite3_cgo: the system C library through cgo.
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
