package loader

import (
	"os"
	"strings"
)

// EnvLoader loads configuration from environment variables.
//
// Values are kept as strings; typed decoding converts them later.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "SKETCHSTORM_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "SKETCHSTORM_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, defaultEnvMapping(prefix))
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// defaultEnvMapping covers settings whose paths cannot be derived from the
// variable name alone.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":              "logging.level",
		prefix + "LOG_FORMAT":             "logging.format",
		prefix + "HISTORY_MAX_ENTRIES":    "history.max_entries",
		prefix + "HISTORY_SETTLE_DELAY":   "history.settle_delay",
		prefix + "HISTORY_EPHEMERAL_TYPE": "history.ephemeral.type",
		prefix + "HISTORY_EPHEMERAL_FILL": "history.ephemeral.fill",
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		if path, mapped := l.mapping[name]; mapped {
			setByPath(config, path, value)
			continue
		}
		if !strings.HasPrefix(name, l.prefix) {
			continue
		}

		// Convert SKETCHSTORM_METRICS_NAMESPACE to metrics.namespace
		setByPath(config, l.envToPath(name), value)
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// envToPath converts SKETCHSTORM_HISTORY_MAX_ENTRIES to history.max_entries.
// The first segment after the prefix names the section; the rest is the
// setting name in snake case.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok {
		return section
	}
	return section + "." + setting
}
