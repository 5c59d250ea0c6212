package tournament

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/badyast/testchess/internal/book"
)

// SuiteOpenings draws uniformly from a fixed opening suite.
type SuiteOpenings struct {
	Suite *book.Suite
}

func (s SuiteOpenings) Opening(rng *rand.Rand) (string, []string) {
	o, ok := s.Suite.Random(rng)
	if !ok {
		return "", nil
	}
	return o.Name, o.Moves
}

// BookOpenings walks a Polyglot book from the starting position, drawing
// a weighted line up to MaxPly plies deep.
type BookOpenings struct {
	Book   *book.Book
	MaxPly int
}

func (b BookOpenings) Opening(rng *rand.Rand) (string, []string) {
	maxPly := b.MaxPly
	if maxPly <= 0 {
		maxPly = 8
	}
	line, err := b.Book.Line(maxPly, rng)
	if err != nil || len(line) == 0 {
		return "", nil
	}
	name := fmt.Sprintf("book: %s", strings.Join(line, " "))
	return name, line
}
