// Package config resolves memcontext configuration.
//
// Values are layered: the TOML file (default ~/.memcontext/config.toml),
// then MEMCTX_* environment variables, then command line overrides.
// File.Resolve fills every default once and validates the result, so the
// rest of the program only ever sees a complete Config.
package config
