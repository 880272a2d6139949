package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scriptFile is the on-disk shape of a script catalog.
type scriptFile struct {
	Scripts []*CardScript `yaml:"scripts"`
}

// ParseScripts builds a catalog from YAML script data.
func ParseScripts(data []byte) (*ScriptCatalog, error) {
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scripts: %w", err)
	}
	catalog := NewScriptCatalog()
	for _, cs := range file.Scripts {
		if cs.Number == "" {
			return nil, fmt.Errorf("parse scripts: entry without a card number")
		}
		catalog.Add(cs)
	}
	return catalog, nil
}

// LoadScriptsFile reads a YAML script catalog from disk.
func LoadScriptsFile(path string) (*ScriptCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scripts: %w", err)
	}
	return ParseScripts(data)
}
