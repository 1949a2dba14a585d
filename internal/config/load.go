package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/dshills/sketchstorm/internal/config/loader"
)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	envPrefix string
	skipEnv   bool
}

// WithFS reads configuration files from fsys.
func WithFS(fsys loader.FileSystem) LoadOption {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutEnv ignores environment variables.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.skipEnv = true
	}
}

// Load resolves the configuration. An empty path skips the file layer; a
// path that does not exist is an error.
func Load(path string, opts ...LoadOption) (Config, error) {
	o := loadOptions{
		fs:        loader.DefaultFS(),
		envPrefix: EnvPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var fileData map[string]any
	if path != "" {
		l, err := loader.ForPath(o.fs, path)
		if err != nil {
			return Config{}, err
		}
		fileData, err = l.Load()
		if err != nil {
			return Config{}, err
		}
		if fileData == nil {
			return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	}

	merged := loader.DeepMerge(nil, fileData)
	if !o.skipEnv {
		envData, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, envData)
	}

	cfg := Default()
	unused, err := decode(merged, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}

	// Unknown keys are an error only when they come from the file; the
	// environment may carry unrelated variables under the prefix.
	var unknown []string
	for _, key := range unused {
		if _, ok := loader.GetByPath(fileData, key); ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, fmt.Errorf("%w in %s: %s", ErrUnknownSetting, path, strings.Join(unknown, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode applies data on top of cfg and returns the dotted paths of keys
// that matched no setting. Settings absent from data keep their current
// values.
func decode(data map[string]any, cfg *Config) ([]string, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(data); err != nil {
		return nil, err
	}
	return md.Unused, nil
}
