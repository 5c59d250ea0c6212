package book

import (
	"math/rand"
	"testing"
)

func TestCommonSuiteContents(t *testing.T) {
	s := CommonSuite()
	if s.Len() != 10 {
		t.Fatalf("len = %d, want 10", s.Len())
	}
	var sicilian bool
	for _, o := range s.All() {
		if o.Name == "Sicilian Defense" {
			sicilian = true
			if len(o.Moves) != 2 || o.Moves[1] != "c7c5" {
				t.Fatalf("sicilian moves = %v", o.Moves)
			}
		}
	}
	if !sicilian {
		t.Fatalf("Sicilian Defense missing")
	}
}

func TestSuiteRandomIsSeedDeterministic(t *testing.T) {
	s := CommonSuite()
	a, _ := s.Random(rand.New(rand.NewSource(7)))
	b, _ := s.Random(rand.New(rand.NewSource(7)))
	if a.Name != b.Name {
		t.Fatalf("same seed drew %q and %q", a.Name, b.Name)
	}
}

func TestEmptySuiteRandom(t *testing.T) {
	if _, ok := NewSuite().Random(rand.New(rand.NewSource(1))); ok {
		t.Fatalf("empty suite produced an opening")
	}
}

func TestSuiteAddCopiesMoves(t *testing.T) {
	s := NewSuite()
	moves := []string{"e2e4"}
	s.Add("King's Pawn", moves)
	moves[0] = "mutated"
	if got := s.All()[0].Moves[0]; got != "e2e4" {
		t.Fatalf("suite shares caller slice: %q", got)
	}
}
