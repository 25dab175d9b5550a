package classification

import (
	"strings"

	"panelcatalog/catalog"
	"panelcatalog/normalization"
)

// Decision is the outcome of classifying one panel.
type Decision struct {
	Target      string `json:"target"`
	MatchedRule *Rule  `json:"matched_rule,omitempty"`
	Stage       string `json:"stage,omitempty"`
	ViaHint     bool   `json:"via_hint,omitempty"`
	Deactivate  bool   `json:"deactivate,omitempty"`
	// NoOp is set when the panel already sits in the category the rules
	// would assign, so batch runs can skip the write and leave the
	// record's timestamps alone.
	NoOp bool `json:"no_op,omitempty"`
}

// Engine classifies panels against one domain. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	domain *Domain
}

// NewEngine builds an engine over a validated domain.
func NewEngine(d Domain) (*Engine, error) {
	validated, err := NewDomain(d)
	if err != nil {
		return nil, err
	}
	return &Engine{domain: validated}, nil
}

// Domain returns the engine's domain (for reporting).
func (e *Engine) Domain() *Domain {
	return e.domain
}

// Classify runs the domain's stages over the panel's searchable text.
// currentSlug is the slug of the panel's present category ("" when
// uncategorized); it only affects the NoOp flag, never the target.
func (e *Engine) Classify(p catalog.Panel, currentSlug string) Decision {
	haystack := normalization.FoldJoin(p.Name, p.Material, p.Finish, p.Description)

	baseFallback := e.domain.Stages[0].Fallback
	target := ""
	var matched *Rule
	matchedStage := ""

	for i := range e.domain.Stages {
		stage := &e.domain.Stages[i]
		if stage.AppliesTo != "" && stage.AppliesTo != target {
			continue
		}

		rule := firstMatch(stage.Rules, haystack)
		switch {
		case rule != nil:
			target = rule.Target
			matched = rule
			matchedStage = stage.Name
		case stage.Fallback != "":
			// Narrowing stages without a fallback keep the current target.
			if target == "" || stage.AppliesTo != "" {
				target = stage.Fallback
			}
		}
	}

	if target == "" {
		target = baseFallback
	}

	decision := Decision{Target: target, MatchedRule: matched, Stage: matchedStage}

	// Structured attribute as secondary signal: only when no keyword rule
	// fired anywhere and we are sitting on the plain fallback.
	if matched == nil && target == baseFallback && len(e.domain.AttributeHints) > 0 {
		if hint, ok := e.domain.AttributeHints[normalization.Fold(p.DecorCategory)]; ok && hint != "" {
			decision.Target = hint
			decision.ViaHint = true
		}
	}

	if decision.Target == TargetDeactivate {
		decision.Deactivate = true
		decision.NoOp = !p.Active
		return decision
	}

	decision.NoOp = currentSlug != "" && currentSlug == decision.Target
	return decision
}

// firstMatch returns the first rule (ascending priority) with any keyword
// contained in the haystack.
func firstMatch(rules []Rule, haystack string) *Rule {
	for i := range rules {
		for _, kw := range rules[i].Keywords {
			if strings.Contains(haystack, kw) {
				return &rules[i]
			}
		}
	}
	return nil
}
