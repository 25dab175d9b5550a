package classification

import (
	"fmt"
	"sort"

	"panelcatalog/normalization"
	apperrors "panelcatalog/server/errors"
)

// TargetDeactivate is the reserved rule target meaning "this record is not
// a panel at all": adhesives and accessories that slipped into a supplier
// feed get deactivated instead of categorized.
const TargetDeactivate = "-"

// Rule maps keywords to a target category slug. Rules are evaluated in
// ascending priority order and the first match wins, so precedence is
// encoded in the order: "hydrofuge" must be checked before any rule that
// would bucket the record as standard.
type Rule struct {
	Target   string   `yaml:"target" json:"target"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Priority int      `yaml:"priority" json:"priority"`
}

// Stage is one ordered rule set. Domains with orthogonal sub-classification
// (edge-banding: material family, then wood species) chain several stages;
// a narrowing stage runs only when the preceding stages produced its
// AppliesTo target.
type Stage struct {
	Name      string `yaml:"name" json:"name"`
	AppliesTo string `yaml:"applies_to" json:"applies_to"`
	Fallback  string `yaml:"fallback" json:"fallback"`
	Rules     []Rule `yaml:"rules" json:"rules"`
}

// Domain is the validated, ordered classification table for one product
// family. It is a plain value passed into the engine: no package-level
// mutable state, so catalogues can classify concurrently without sharing.
type Domain struct {
	Name   string  `yaml:"name" json:"name"`
	Stages []Stage `yaml:"stages" json:"stages"`

	// AttributeHints maps a folded DecorCategory value to a target. Hints
	// are only consulted when every keyword stage fell through to the
	// fallback: keyword rules are authoritative, structured attributes are
	// the secondary signal.
	AttributeHints map[string]string `yaml:"attribute_hints" json:"attribute_hints"`
}

// Validate checks the domain at load time. Violations are construction
// errors: the engine fails fast rather than silently skipping rules.
func (d *Domain) Validate() error {
	if d.Name == "" {
		return apperrors.NewValidationError("classification domain has no name", nil)
	}
	if len(d.Stages) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("domain %q has no stages", d.Name), nil)
	}
	if d.Stages[0].Fallback == "" {
		return apperrors.NewValidationError(
			fmt.Sprintf("domain %q: first stage %q must declare a fallback target", d.Name, d.Stages[0].Name), nil)
	}

	for _, stage := range d.Stages {
		seen := make(map[int]bool)
		for _, rule := range stage.Rules {
			if rule.Target == "" {
				return apperrors.NewValidationError(
					fmt.Sprintf("domain %q stage %q: rule with priority %d has empty target", d.Name, stage.Name, rule.Priority), nil)
			}
			if len(rule.Keywords) == 0 {
				return apperrors.NewValidationError(
					fmt.Sprintf("domain %q stage %q: rule %q has zero keywords", d.Name, stage.Name, rule.Target), nil)
			}
			for _, kw := range rule.Keywords {
				if kw == "" {
					return apperrors.NewValidationError(
						fmt.Sprintf("domain %q stage %q: rule %q has an empty keyword", d.Name, stage.Name, rule.Target), nil)
				}
			}
			if seen[rule.Priority] {
				return apperrors.NewValidationError(
					fmt.Sprintf("domain %q stage %q: duplicate priority %d", d.Name, stage.Name, rule.Priority), nil)
			}
			seen[rule.Priority] = true
		}
	}

	return nil
}

// normalize sorts rules by priority and folds keywords and hint keys so
// matching is accent-insensitive with the same folding search uses.
func (d *Domain) normalize() {
	for i := range d.Stages {
		stage := &d.Stages[i]
		sort.SliceStable(stage.Rules, func(a, b int) bool {
			return stage.Rules[a].Priority < stage.Rules[b].Priority
		})
		for j := range stage.Rules {
			for k, kw := range stage.Rules[j].Keywords {
				stage.Rules[j].Keywords[k] = normalization.Fold(kw)
			}
		}
	}

	if len(d.AttributeHints) > 0 {
		folded := make(map[string]string, len(d.AttributeHints))
		for k, v := range d.AttributeHints {
			folded[normalization.Fold(k)] = v
		}
		d.AttributeHints = folded
	}
}

// NewDomain validates and normalizes a domain.
func NewDomain(d Domain) (*Domain, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.normalize()
	return &d, nil
}
