package search

import "testing"

func contains(terms []string, want string) bool {
	for _, t := range terms {
		if t == want {
			return true
		}
	}
	return false
}

func TestExpand_Pho(t *testing.T) {
	terms := Expand("pho")

	for _, want := range []string{"pho", "noodle", "vietnamese", "soup"} {
		if !contains(terms, want) {
			t.Errorf("Expand(%q) missing %q, got %v", "pho", want, terms)
		}
	}
}

func TestExpand_OriginalTokensFirst(t *testing.T) {
	terms := Expand("Ramen Bar")

	if len(terms) < 2 || terms[0] != "ramen" || terms[1] != "bar" {
		t.Errorf("Expand should keep lowercased query tokens first, got %v", terms)
	}
}

func TestExpand_UnknownTokenKept(t *testing.T) {
	terms := Expand("zzzunknown")

	if len(terms) != 1 || terms[0] != "zzzunknown" {
		t.Errorf("Expand of unknown token = %v, want just the token", terms)
	}
}

func TestExpand_NoDuplicates(t *testing.T) {
	terms := Expand("pho noodle soup")

	seen := make(map[string]int)
	for _, term := range terms {
		seen[term]++
		if seen[term] > 1 {
			t.Errorf("Expand returned duplicate term %q: %v", term, terms)
		}
	}
}

func TestExpand_Empty(t *testing.T) {
	if terms := Expand("   "); len(terms) != 0 {
		t.Errorf("Expand of blank query = %v, want empty", terms)
	}
}
