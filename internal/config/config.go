// Package config loads the scheduling configuration from a YAML file.
// Values not present in the file keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"gopkg.in/yaml.v3"
)

// DefaultPath resolves the configuration file path in priority order:
// 1. KANJISRS_CONFIG environment variable
// 2. $XDG_CONFIG_HOME/kanjisrs/config.yaml
// 3. ~/.config/kanjisrs/config.yaml
func DefaultPath() (string, error) {
	if p := os.Getenv("KANJISRS_CONFIG"); p != "" {
		return p, nil
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "kanjisrs", "config.yaml"), nil
}

// Load reads path over the defaults and validates the result. When
// mustExist is false a missing file yields the defaults.
func Load(path string, mustExist bool) (srs.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !mustExist {
		return srs.DefaultConfig(), nil
	}
	if err != nil {
		return srs.Config{}, fmt.Errorf("error reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return srs.Config{}, fmt.Errorf("error loading config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (srs.Config, error) {
	return Merge(srs.DefaultConfig(), data)
}

// Merge decodes YAML over base and validates the result. Keys absent from
// data keep base's values; base itself is not modified.
func Merge(base srs.Config, data []byte) (srs.Config, error) {
	cfg := base
	cfg.LearningSteps = append([]srs.Duration(nil), base.LearningSteps...)
	cfg.IntervalModifiers = make(map[string]float64, len(base.IntervalModifiers))
	for k, v := range base.IntervalModifiers {
		cfg.IntervalModifiers[k] = v
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return srs.Config{}, fmt.Errorf("%w: %v", srs.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return srs.Config{}, err
	}
	return cfg, nil
}

// Set changes one setting. key is a YAML field name, dotted for nested
// fields ("learning_window.start"); value is parsed as YAML, so lists
// and maps may be given inline ("[1m, 10m]").
func Set(cfg srs.Config, key, value string) (srs.Config, error) {
	if strings.TrimSpace(value) == "" {
		return srs.Config{}, fmt.Errorf("%w: empty value for %q", srs.ErrInvalidConfig, key)
	}
	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return srs.Config{}, fmt.Errorf("%w: value for %q: %v", srs.ErrInvalidConfig, key, err)
	}

	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			return srs.Config{}, fmt.Errorf("%w: bad key %q", srs.ErrInvalidConfig, key)
		}
		v = map[string]any{parts[i]: v}
	}
	patch, err := yaml.Marshal(v)
	if err != nil {
		return srs.Config{}, fmt.Errorf("error encoding %q: %w", key, err)
	}
	return Merge(cfg, patch)
}

// Marshal renders cfg as YAML.
func Marshal(cfg srs.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save validates cfg and writes it to path, creating parent directories.
func Save(path string, cfg srs.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config %s: %w", path, err)
	}
	return nil
}
