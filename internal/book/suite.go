package book

import "math/rand"

// Opening is a named line of UCI moves from the starting position.
type Opening struct {
	Name  string
	Moves []string
}

// Suite is a fixed collection of openings used when no Polyglot book is
// configured. It hands out lines for tournament games.
type Suite struct {
	openings []Opening
}

// NewSuite builds an empty suite.
func NewSuite() *Suite { return &Suite{} }

// CommonSuite builds a suite preloaded with well-known openings.
func CommonSuite() *Suite {
	s := NewSuite()
	for _, o := range []Opening{
		{"Italian Game", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4"}},
		{"Sicilian Defense", []string{"e2e4", "c7c5"}},
		{"French Defense", []string{"e2e4", "e7e6"}},
		{"Caro-Kann Defense", []string{"e2e4", "c7c6"}},
		{"Queen's Gambit", []string{"d2d4", "d7d5", "c2c4"}},
		{"King's Indian Defense", []string{"d2d4", "g8f6", "c2c4", "g7g6"}},
		{"Ruy Lopez", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"}},
		{"Scotch Game", []string{"e2e4", "e7e5", "g1f3", "b8c6", "d2d4"}},
		{"English Opening", []string{"c2c4"}},
		{"Reti Opening", []string{"g1f3"}},
	} {
		s.Add(o.Name, o.Moves)
	}
	return s
}

// Add appends an opening. The move slice is copied.
func (s *Suite) Add(name string, moves []string) {
	s.openings = append(s.openings, Opening{
		Name:  name,
		Moves: append([]string(nil), moves...),
	})
}

// Len reports the number of openings.
func (s *Suite) Len() int { return len(s.openings) }

// Random draws one opening uniformly. The bool is false on an empty suite.
func (s *Suite) Random(rng *rand.Rand) (Opening, bool) {
	if len(s.openings) == 0 {
		return Opening{}, false
	}
	return s.openings[rng.Intn(len(s.openings))], true
}

// All returns the openings in insertion order.
func (s *Suite) All() []Opening {
	return append([]Opening(nil), s.openings...)
}
