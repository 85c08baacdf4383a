package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".nucheck"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a YAML configuration file.
//
// Unknown keys are rejected so a misspelled setting does not silently fall
// back to its default. An empty file is valid. Site keys are lowercased to
// match the host names the fetcher looks up.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, sc := range cf.Sites {
		sites[strings.ToLower(host)] = sc
	}
	cf.Sites = sites

	return &cf, nil
}

// FindConfigFile returns the configuration file to load, or "" if there is
// none. An explicit configPath is used only if it exists; otherwise
// .nucheck is looked up in the working directory, then the home directory.
func FindConfigFile(configPath string) string {
	candidates := []string{configPath}
	if configPath == "" {
		candidates = candidates[:0]
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
