// Package config holds the handful of settings this server accepts on
// the command line: listen port, snapshot location, and an optional
// primary to replicate from.
package config

// Config is the fully-resolved server configuration, external to THE
// CORE: the core only ever consumes the resolved values below.
type Config struct {
	Port       int
	Dir        string
	DBFilename string
	ReplicaOf  string // "<host> <port>", empty if running as a primary
}

func Default() Config {
	return Config{
		Port:       6379,
		Dir:        ".",
		DBFilename: "empty.rdb",
	}
}
