//go:build sqlite_vec && !purego

package storage

import _ "github.com/mattn/go-sqlite3" // Registers "sqlite3"; needs CGO_ENABLED=1

// Driver selection for `-tags sqlite_vec` builds. purego wins when both
// tags are set.
const (
	DriverName = "sqlite3"
	BuildMode  = "cgo"
)
