// Package manifest reads the parts of a Clarinet.toml the CLI needs: the
// project name and where each contract's source lives.
package manifest

import (
	"sort"

	"emperror.dev/errors"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the conventional manifest file name.
const FileName = "Clarinet.toml"

// Project is the [project] table.
type Project struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Contract is one [contracts.<name>] table. Path is relative to the manifest.
type Contract struct {
	Path string `toml:"path"`
}

// Manifest is a parsed Clarinet.toml.
type Manifest struct {
	Project   Project             `toml:"project"`
	Contracts map[string]Contract `toml:"contracts"`
}

// Parse decodes manifest text.
func Parse(content string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal([]byte(content), &m); err != nil {
		return nil, errors.WrapIf(err, "manifest: parse")
	}
	for name, c := range m.Contracts {
		if c.Path == "" {
			return nil, errors.Errorf("manifest: contract %q has no path", name)
		}
	}
	return &m, nil
}

// ContractNames returns the contract names in sorted order.
func (m *Manifest) ContractNames() []string {
	names := make([]string, 0, len(m.Contracts))
	for name := range m.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
