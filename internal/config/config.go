// Package config loads the serialized docmeta application configuration.
package config

import (
	"bytes"
	"fmt"

	"github.com/dnswlt/docmeta/internal/store"
	"github.com/dnswlt/docmeta/internal/transform"
	"gopkg.in/yaml.v3"
)

// RecordsConfig configures where record streams are read from when no
// explicit input file is given on the command line.
type RecordsConfig struct {
	// Directory (relative to the store root) that is scanned for
	// *.json / *.ndjson record stream files.
	Dir string `yaml:"dir"`
}

// Bundle is the umbrella struct for the serialized application configuration YAML.
// It bundles the package-specific configurations.
type Bundle struct {
	Transformer transform.Config `yaml:"transformer"`
	Records     RecordsConfig    `yaml:"records"`
}

func Load(st store.Store, configPath string) (*Bundle, error) {
	bs, err := st.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read config %q: %v", configPath, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("invalid configuration YAML in %q: %v", configPath, err)
	}

	// Populate defaults and validate computed fields.
	if err := bundle.Transformer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transformer configuration in %q: %v", configPath, err)
	}

	return &bundle, nil
}
