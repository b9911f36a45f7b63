// Package config loads the service configuration in three layers:
// built-in defaults, an optional YAML file named by TASKNEST_CONFIG_FILE,
// and TASKNEST_* environment variables. Environment always wins.
//
// Every setting has a default except the ones that cannot be guessed:
// the PostgreSQL URL for the profile store and the claims token secret.
// LoadConfig fails fast on a missing or inconsistent setting so a
// misconfigured deployment never reaches the listen socket.
package config
