// Package config loads the codeintel YAML configuration.
//
// Values may reference environment variables as ${VAR} or ${VAR:-default}.
// Keys absent from the file keep their defaults, and the result is validated
// with struct tags before use. A Watcher reloads the file on change so a
// running daemon can rebuild its retrieval engine without restarting.
package config
