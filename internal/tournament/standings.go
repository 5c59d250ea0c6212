package tournament

import (
	"sort"
	"sync"

	"github.com/badyast/testchess/internal/match"
)

// Entry is one engine's accumulated score line.
type Entry struct {
	Engine      string
	Games       int
	Wins        int
	Draws       int
	Losses      int
	Points      float64
	WinsAsWhite int
	WinsAsBlack int
	Nodes       int64
}

// ScorePercent is points over games played, as a percentage.
func (e Entry) ScorePercent() float64 {
	if e.Games == 0 {
		return 0
	}
	return e.Points / float64(e.Games) * 100
}

// Table accumulates standings from sealed game records. Safe for
// concurrent Apply calls.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// NewTable seeds the table with zero lines for the named engines so
// that engines without finished games still appear in snapshots.
func NewTable(engines ...string) *Table {
	t := &Table{entries: make(map[string]*Entry, len(engines))}
	for _, name := range engines {
		t.ensure(name)
	}
	return t
}

func (t *Table) ensure(name string) *Entry {
	e, ok := t.entries[name]
	if !ok {
		e = &Entry{Engine: name}
		t.entries[name] = e
		t.order = append(t.order, name)
	}
	return e
}

// Apply folds one sealed record into the table. Aborted games score
// nothing for either side.
func (t *Table) Apply(rec *match.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	white := t.ensure(rec.White)
	black := t.ensure(rec.Black)

	switch rec.Outcome {
	case match.OutcomeWhiteWins:
		white.Games++
		black.Games++
		white.Wins++
		white.Points++
		white.WinsAsWhite++
		black.Losses++
	case match.OutcomeBlackWins:
		white.Games++
		black.Games++
		black.Wins++
		black.Points++
		black.WinsAsBlack++
		white.Losses++
	case match.OutcomeDraw:
		white.Games++
		black.Games++
		white.Draws++
		black.Draws++
		white.Points += 0.5
		black.Points += 0.5
	}

	white.Nodes += rec.NodesWhite
	black.Nodes += rec.NodesBlack
}

// Recompute rebuilds the table from scratch out of the given records.
// Feeding it the same records the table has already absorbed yields an
// identical table.
func (t *Table) Recompute(recs []*match.Record) {
	t.mu.Lock()
	seeded := append([]string(nil), t.order...)
	t.entries = make(map[string]*Entry, len(seeded))
	t.order = nil
	for _, name := range seeded {
		t.ensure(name)
	}
	t.mu.Unlock()

	for _, rec := range recs {
		if rec != nil {
			t.Apply(rec)
		}
	}
}

// Snapshot returns the standings sorted by points, then wins, then name.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Engine < out[j].Engine
	})
	return out
}
