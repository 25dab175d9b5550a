package classification

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "panelcatalog/server/errors"
)

// RulesFile is the on-disk rule definition document: one domain per
// product family (MDF, particleboard, plywood, edge-banding, ...).
type RulesFile struct {
	Domains []Domain `yaml:"domains"`
}

// LoadRules parses and validates a YAML rule file, returning one engine
// per domain keyed by domain name. Any invalid domain fails the whole
// load: a half-usable rule table is worse than none.
func LoadRules(path string) (map[string]*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to read rules file %s", path), err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a YAML rules document.
func ParseRules(data []byte) (map[string]*Engine, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewValidationError("failed to parse rules document", err)
	}
	if len(file.Domains) == 0 {
		return nil, apperrors.NewValidationError("rules document declares no domains", nil)
	}

	engines := make(map[string]*Engine, len(file.Domains))
	for _, domain := range file.Domains {
		if _, exists := engines[domain.Name]; exists {
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate domain %q", domain.Name), nil)
		}
		engine, err := NewEngine(domain)
		if err != nil {
			return nil, err
		}
		engines[domain.Name] = engine
	}
	return engines, nil
}
