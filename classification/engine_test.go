package classification

import (
	"testing"

	"panelcatalog/catalog"
)

func testDomain(t *testing.T) Domain {
	t.Helper()
	return Domain{
		Name: "panneaux",
		Stages: []Stage{
			{
				Name:     "famille",
				Fallback: "panneaux-divers",
				Rules: []Rule{
					{Target: "-", Priority: 5, Keywords: []string{"échantillon"}},
					{Target: "panneaux-hydrofuges", Priority: 10, Keywords: []string{"hydrofuge", "ctbh"}},
					{Target: "panneaux-melamines", Priority: 20, Keywords: []string{"mélaminé"}},
				},
			},
			{
				Name:      "decor",
				AppliesTo: "panneaux-melamines",
				Rules: []Rule{
					{Target: "melamines-bois", Priority: 10, Keywords: []string{"chêne", "hêtre"}},
				},
			},
		},
		AttributeHints: map[string]string{
			"bois": "panneaux-decors-bois",
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testDomain(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestClassify_KeywordMatch(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name   string
		panel  catalog.Panel
		target string
	}{
		{"accented keyword on folded name", catalog.Panel{Name: "Panneau HYDROFUGE 18mm"}, "panneaux-hydrofuges"},
		{"ctbh alias", catalog.Panel{Name: "Aggloméré CTBH"}, "panneaux-hydrofuges"},
		{"keyword in description", catalog.Panel{Name: "Panneau", Description: "qualité hydrofuge"}, "panneaux-hydrofuges"},
		{"lower priority rule", catalog.Panel{Name: "Panneau mélaminé blanc"}, "panneaux-melamines"},
		{"no match falls back", catalog.Panel{Name: "Produit inconnu"}, "panneaux-divers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Classify(tt.panel, "")
			if d.Target != tt.target {
				t.Errorf("Classify target = %q, want %q", d.Target, tt.target)
			}
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	e := newTestEngine(t)

	// Both rules match; the lower priority value must win.
	d := e.Classify(catalog.Panel{Name: "mélaminé hydrofuge"}, "")
	if d.Target != "panneaux-hydrofuges" {
		t.Errorf("target = %q, want the priority-10 rule over priority-20", d.Target)
	}
	if d.MatchedRule == nil || d.MatchedRule.Priority != 10 {
		t.Errorf("matched rule = %+v, want priority 10", d.MatchedRule)
	}
}

func TestClassify_NarrowingStage(t *testing.T) {
	e := newTestEngine(t)

	d := e.Classify(catalog.Panel{Name: "Panneau mélaminé chêne doré"}, "")
	if d.Target != "melamines-bois" {
		t.Errorf("target = %q, want the second stage to narrow to melamines-bois", d.Target)
	}
	if d.Stage != "decor" {
		t.Errorf("stage = %q, want decor", d.Stage)
	}

	// The narrowing stage must not run when the first stage chose another
	// family.
	d = e.Classify(catalog.Panel{Name: "Panneau hydrofuge chêne"}, "")
	if d.Target != "panneaux-hydrofuges" {
		t.Errorf("target = %q, want the decor stage skipped", d.Target)
	}
}

func TestClassify_Deactivate(t *testing.T) {
	e := newTestEngine(t)

	d := e.Classify(catalog.Panel{Name: "Échantillon mélaminé", Active: true}, "")
	if !d.Deactivate {
		t.Fatal("expected a deactivation decision")
	}
	if d.NoOp {
		t.Error("deactivating an active panel must not be a no-op")
	}

	d = e.Classify(catalog.Panel{Name: "Échantillon mélaminé", Active: false}, "")
	if !d.Deactivate || !d.NoOp {
		t.Error("deactivating an already inactive panel must be a no-op")
	}
}

func TestClassify_AttributeHint(t *testing.T) {
	e := newTestEngine(t)

	// No keyword matched, structured attribute present: hint wins over the
	// fallback.
	d := e.Classify(catalog.Panel{Name: "Produit inconnu", DecorCategory: "Bois"}, "")
	if d.Target != "panneaux-decors-bois" {
		t.Errorf("target = %q, want the attribute hint", d.Target)
	}
	if !d.ViaHint {
		t.Error("decision should be flagged as hint-based")
	}

	// A keyword match always beats the attribute.
	d = e.Classify(catalog.Panel{Name: "Panneau hydrofuge", DecorCategory: "Bois"}, "")
	if d.Target != "panneaux-hydrofuges" || d.ViaHint {
		t.Errorf("target = %q viaHint=%v, want the keyword rule to win", d.Target, d.ViaHint)
	}

	// Unknown attribute value: plain fallback.
	d = e.Classify(catalog.Panel{Name: "Produit inconnu", DecorCategory: "Galaxie"}, "")
	if d.Target != "panneaux-divers" || d.ViaHint {
		t.Errorf("target = %q viaHint=%v, want the fallback", d.Target, d.ViaHint)
	}
}

func TestClassify_NoOp(t *testing.T) {
	e := newTestEngine(t)

	d := e.Classify(catalog.Panel{Name: "Panneau hydrofuge"}, "panneaux-hydrofuges")
	if !d.NoOp {
		t.Error("already correctly categorized panel should be a no-op")
	}

	d = e.Classify(catalog.Panel{Name: "Panneau hydrofuge"}, "panneaux-divers")
	if d.NoOp {
		t.Error("miscategorized panel must not be a no-op")
	}

	d = e.Classify(catalog.Panel{Name: "Panneau hydrofuge"}, "")
	if d.NoOp {
		t.Error("uncategorized panel must not be a no-op")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	p := catalog.Panel{Name: "Panneau mélaminé chêne", DecorCategory: "bois"}

	first := e.Classify(p, "")
	for i := 0; i < 5; i++ {
		if got := e.Classify(p, ""); got.Target != first.Target {
			t.Fatalf("run %d: target %q differs from first %q", i, got.Target, first.Target)
		}
	}
}
