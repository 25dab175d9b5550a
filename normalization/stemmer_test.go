package normalization

import "testing"

func TestFrenchStemmer_SingularPluralAgree(t *testing.T) {
	s := NewFrenchStemmer()

	pairs := [][2]string{
		{"hydrofuge", "hydrofuges"},
		{"panneau", "panneaux"},
		{"mélaminé", "mélaminés"},
	}

	for _, pair := range pairs {
		a, b := s.Stem(pair[0]), s.Stem(pair[1])
		if a != b {
			t.Errorf("Stem(%q) = %q and Stem(%q) = %q, want equal stems", pair[0], a, pair[1], b)
		}
	}
}

func TestFrenchStemmer_CodesPassThrough(t *testing.T) {
	s := NewFrenchStemmer()

	if got := s.Stem("105083"); got != "105083" {
		t.Errorf("Stem(105083) = %q, want the code unchanged", got)
	}
	if got := s.Stem(""); got != "" {
		t.Errorf("Stem of empty = %q, want empty", got)
	}
	if got := s.Stem("  OSB  "); got != "osb" {
		t.Errorf("Stem with whitespace = %q, want %q", got, "osb")
	}
}

func TestFrenchStemmer_Cache(t *testing.T) {
	s := NewFrenchStemmer()

	first := s.Stem("panneaux")
	if s.CacheSize() != 1 {
		t.Fatalf("cache size = %d after one stem, want 1", s.CacheSize())
	}
	second := s.Stem("panneaux")
	if first != second {
		t.Errorf("cached stem %q differs from first %q", second, first)
	}
	if s.CacheSize() != 1 {
		t.Errorf("cache size = %d after repeat stem, want 1", s.CacheSize())
	}
}

func TestFrenchStemmer_StemTokens(t *testing.T) {
	s := NewFrenchStemmer()

	got := s.StemTokens([]string{"panneaux", "", "105083"})
	if len(got) != 2 {
		t.Fatalf("StemTokens kept %d tokens, want 2", len(got))
	}
	if got[1] != "105083" {
		t.Errorf("StemTokens[1] = %q, want the code preserved", got[1])
	}
}
