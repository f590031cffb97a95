//go:build !sqlite_vec || purego

package storage

import _ "modernc.org/sqlite" // Registers "sqlite"; no C toolchain required

// Driver selection for default builds. GetStatus and the version command
// report these values.
const (
	DriverName = "sqlite"
	BuildMode  = "purego"
)
