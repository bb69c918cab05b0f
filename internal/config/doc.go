// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and RUNQ_-prefixed environment
// variables. It provides type-safe access to the settings of the server,
// the task executor, the transfer queue and API authentication.
package config
