package triage

import "testing"

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"basic", "Someone broke into the bike cage", []string{"someone", "broke", "into", "bike", "cage"}},
		{"short tokens dropped", "a man ran off", []string{}},
		{"punctuation split", "bike-cage, broken!", []string{"bike", "cage", "broken"}},
		{"digits kept", "room 1204 flooded", []string{"room", "1204", "flooded"}},
		{"case folded", "LOUD Argument", []string{"loud", "argument"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v tokens, want %v", tt.text, len(got), len(tt.want))
			}
			for _, w := range tt.want {
				if _, ok := got[w]; !ok {
					t.Errorf("Tokenize(%q) missing %q", tt.text, w)
				}
			}
		})
	}
}

func TestJaccard_Identity(t *testing.T) {
	t.Parallel()

	a := Tokenize("someone stole my bike near the library")
	if got := Jaccard(a, a); got != 1 {
		t.Errorf("Jaccard(a, a) = %v, want 1", got)
	}
}

func TestJaccard_Symmetry(t *testing.T) {
	t.Parallel()

	a := Tokenize("someone stole my bike near the library")
	b := Tokenize("bike theft outside library entrance")
	if ab, ba := Jaccard(a, b), Jaccard(b, a); ab != ba {
		t.Errorf("Jaccard not symmetric: %v vs %v", ab, ba)
	}
}

func TestJaccard_EmptyUnion(t *testing.T) {
	t.Parallel()

	a := Tokenize("a an it")
	b := Tokenize("")
	if got := Jaccard(a, b); got != 0 {
		t.Errorf("Jaccard(empty, empty) = %v, want 0", got)
	}
}

func TestJaccard_Disjoint(t *testing.T) {
	t.Parallel()

	a := Tokenize("loud argument upstairs")
	b := Tokenize("bike missing again")
	if got := Jaccard(a, b); got != 0 {
		t.Errorf("Jaccard(disjoint) = %v, want 0", got)
	}
}

func TestJaccard_PartialOverlap(t *testing.T) {
	t.Parallel()

	// {bike, stolen, library} vs {bike, found, library}: 2 shared of 4 total.
	a := Tokenize("bike stolen library")
	b := Tokenize("bike found library")
	if got, want := Jaccard(a, b), 0.5; got != want {
		t.Errorf("Jaccard = %v, want %v", got, want)
	}
}
