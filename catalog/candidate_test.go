package catalog

import "testing"

func TestTranslateCandidate(t *testing.T) {
	price := 42.5
	rec := CandidateRecord{
		CatalogueSlug: "unilin",
		Reference:     "  105083-unilin ",
		Name:          " Panneau   mélaminé\tchêne ",
		Material:      "aggloméré",
		ThicknessMM:   []float64{8, 10, 18},
		LengthMM:      2500,
		WidthMM:       1200,
		PriceM2:       &price,
	}

	p := TranslateCandidate(rec, 7)

	if p.CatalogueID != 7 {
		t.Errorf("catalogue = %d, want 7", p.CatalogueID)
	}
	if p.Reference != "105083-unilin" {
		t.Errorf("reference = %q, want trimmed", p.Reference)
	}
	if p.Name != "Panneau mélaminé chêne" {
		t.Errorf("name = %q, want collapsed whitespace", p.Name)
	}
	if !p.Active {
		t.Error("translated panel must start active")
	}
	if p.DefaultThicknessMM != 8 {
		t.Errorf("default thickness = %v, want the first of the set", p.DefaultThicknessMM)
	}
	if len(p.ThicknessMM) != 3 {
		t.Errorf("thickness = %v", p.ThicknessMM)
	}
	if p.CanonicalCode != "" {
		t.Error("canonical code must not be derived at ingestion")
	}
	if p.PriceM2 == nil || *p.PriceM2 != 42.5 {
		t.Errorf("price = %v", p.PriceM2)
	}
}

func TestTranslateCandidate_NoThickness(t *testing.T) {
	p := TranslateCandidate(CandidateRecord{Reference: "x", Name: "y"}, 1)
	if p.ThicknessMM != nil || p.DefaultThicknessMM != 0 {
		t.Errorf("thickness = %v default = %v, want empty", p.ThicknessMM, p.DefaultThicknessMM)
	}
}
