/*
Package config loads and validates the relay's YAML configuration.

Defaults are applied before decoding, so a partial file only overrides
what it names. Unknown keys are a hard error: a typo in an option name
fails startup instead of silently running with the default.
*/
package config
