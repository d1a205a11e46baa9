package attempt

import "testing"

func TestOptionPermutation_Deterministic(t *testing.T) {
	p1 := OptionPermutation("att-1", "q-1", 4)
	p2 := OptionPermutation("att-1", "q-1", 4)
	if len(p1) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(p1))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("permutation not stable: %v vs %v", p1, p2)
		}
	}
}

func TestOptionPermutation_IsPermutation(t *testing.T) {
	p := OptionPermutation("att-2", "q-9", 4)
	seen := map[int]bool{}
	for _, v := range p {
		if v < 0 || v >= 4 || seen[v] {
			t.Fatalf("not a permutation of 0..3: %v", p)
		}
		seen[v] = true
	}
}

func TestLetterMapping_RoundTrips(t *testing.T) {
	p := OptionPermutation("att-3", "q-3", 4)
	for _, canonical := range []string{"A", "B", "C", "D"} {
		presented := PresentedLetter(p, canonical)
		if presented == "" {
			t.Fatalf("no presented letter for %s with %v", canonical, p)
		}
		if back := CanonicalLetter(p, presented); back != canonical {
			t.Fatalf("round trip broke: %s -> %s -> %s", canonical, presented, back)
		}
	}
}

func TestCanonicalLetter_RejectsGarbage(t *testing.T) {
	p := OptionPermutation("att-4", "q-4", 4)
	for _, bad := range []string{"", "e", "Z", "AB"} {
		if got := CanonicalLetter(p, bad); got != "" {
			t.Fatalf("expected empty mapping for %q, got %q", bad, got)
		}
	}
}
