// Package config loads sketchstorm configuration.
//
// Settings are resolved from three sources, lowest priority first:
//
//  1. Built-in defaults (Default)
//  2. A configuration file, TOML or YAML chosen by extension
//  3. Environment variables prefixed with SKETCHSTORM_
//
// The sources are read into maps by the loader sub-package and decoded
// into Config with mapstructure. Durations may be written as strings such
// as "250ms".
//
// # Basic Usage
//
//	cfg, err := config.Load("sketchstorm.toml")
//	if err != nil {
//	    return err
//	}
//	h, err := history.New(canvas, history.FromConfig(cfg.History)...)
package config
