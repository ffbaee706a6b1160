package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound is returned for a dotted key that names nothing.
var ErrKeyNotFound = errors.New("key not found")

// Raw is the config file as an untyped YAML tree, addressed by dotted keys
// such as "history.windowSize". The CLI edits it without losing keys the
// typed Config does not know about.
type Raw map[string]any

// reserved keys are refused anywhere in a dotted key.
var reserved = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseKey splits a dotted key into its segments.
func ParseKey(key string) ([]string, error) {
	if key == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	segs := strings.Split(key, ".")
	for _, s := range segs {
		switch {
		case s == "":
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q has an empty segment", key)}
		case reserved[s]:
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q uses reserved name %q", key, s)}
		}
	}
	return segs, nil
}

// section walks to the map holding the last segment. With create set,
// missing sections are added; a scalar in the way is an error either way.
func (r Raw) section(segs []string, create bool) (map[string]any, error) {
	cur := map[string]any(r)
	for i, s := range segs[:len(segs)-1] {
		next, ok := cur[s]
		if !ok {
			if !create {
				return nil, ErrKeyNotFound
			}
			m := map[string]any{}
			cur[s] = m
			cur = m
			continue
		}
		switch m := next.(type) {
		case map[string]any:
			cur = m
		case Raw:
			cur = m
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("%s is not a section", strings.Join(segs[:i+1], "."))}
		}
	}
	return cur, nil
}

// Get returns the value at key.
func (r Raw) Get(key string) (any, error) {
	segs, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	sec, err := r.section(segs, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	v, ok := sec[segs[len(segs)-1]]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	return v, nil
}

// Set stores value at key, adding sections as needed.
func (r Raw) Set(key string, value any) error {
	segs, err := ParseKey(key)
	if err != nil {
		return err
	}
	sec, err := r.section(segs, true)
	if err != nil {
		return err
	}
	sec[segs[len(segs)-1]] = value
	return nil
}

// Unset removes key.
func (r Raw) Unset(key string) error {
	segs, err := ParseKey(key)
	if err != nil {
		return err
	}
	sec, err := r.section(segs, false)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	last := segs[len(segs)-1]
	if _, ok := sec[last]; !ok {
		return fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	delete(sec, last)
	return nil
}

// LoadRaw reads path as a Raw tree. A missing file is an empty tree.
func LoadRaw(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Raw{}, nil
	}
	if err != nil {
		return nil, err
	}
	// Decoding into Raw would give nested sections the Raw type too.
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if m == nil {
		return Raw{}, nil
	}
	return Raw(m), nil
}

// Save writes the tree to path, readable by the owner only.
func (r Raw) Save(path string) error {
	data, err := yaml.Marshal(map[string]any(r))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
