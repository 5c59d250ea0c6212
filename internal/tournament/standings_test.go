package tournament

import (
	"reflect"
	"testing"

	"github.com/badyast/testchess/internal/match"
)

func rec(white, black string, outcome match.Outcome) *match.Record {
	return &match.Record{White: white, Black: black, Outcome: outcome}
}

func TestTableScoring(t *testing.T) {
	table := NewTable("a", "b")
	table.Apply(rec("a", "b", match.OutcomeWhiteWins))
	table.Apply(rec("b", "a", match.OutcomeBlackWins))
	table.Apply(rec("a", "b", match.OutcomeDraw))

	snap := table.Snapshot()
	if snap[0].Engine != "a" {
		t.Fatalf("leader = %q, want a", snap[0].Engine)
	}
	a := snap[0]
	if a.Games != 3 || a.Wins != 2 || a.Draws != 1 || a.Losses != 0 {
		t.Fatalf("a = %+v", a)
	}
	if a.Points != 2.5 {
		t.Fatalf("a.Points = %v", a.Points)
	}
	if a.WinsAsWhite != 1 || a.WinsAsBlack != 1 {
		t.Fatalf("color split = %d/%d", a.WinsAsWhite, a.WinsAsBlack)
	}
	if pct := a.ScorePercent(); pct < 83.2 || pct > 83.4 {
		t.Fatalf("score%% = %v", pct)
	}
}

func TestTableIgnoresAbortedGames(t *testing.T) {
	table := NewTable("a", "b")
	table.Apply(rec("a", "b", match.OutcomeAborted))
	for _, e := range table.Snapshot() {
		if e.Games != 0 || e.Points != 0 {
			t.Fatalf("aborted game scored: %+v", e)
		}
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	recs := []*match.Record{
		rec("a", "b", match.OutcomeWhiteWins),
		rec("c", "a", match.OutcomeDraw),
		rec("b", "c", match.OutcomeBlackWins),
		nil, // skipped slot
	}
	table := NewTable("a", "b", "c")
	for _, r := range recs {
		if r != nil {
			table.Apply(r)
		}
	}
	before := table.Snapshot()
	table.Recompute(recs)
	after := table.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("recompute changed the table:\n%+v\n%+v", before, after)
	}
}

func TestSnapshotOrdering(t *testing.T) {
	table := NewTable("zeta", "alpha", "mid")
	table.Apply(rec("zeta", "mid", match.OutcomeWhiteWins))
	table.Apply(rec("alpha", "mid", match.OutcomeWhiteWins))
	// zeta and alpha tie on points and wins: name breaks the tie
	snap := table.Snapshot()
	if snap[0].Engine != "alpha" || snap[1].Engine != "zeta" || snap[2].Engine != "mid" {
		t.Fatalf("order = %v", []string{snap[0].Engine, snap[1].Engine, snap[2].Engine})
	}
}

func TestNodesAccumulate(t *testing.T) {
	table := NewTable("a", "b")
	r := rec("a", "b", match.OutcomeDraw)
	r.NodesWhite = 1000
	r.NodesBlack = 2500
	table.Apply(r)
	snap := table.Snapshot()
	for _, e := range snap {
		switch e.Engine {
		case "a":
			if e.Nodes != 1000 {
				t.Fatalf("a nodes = %d", e.Nodes)
			}
		case "b":
			if e.Nodes != 2500 {
				t.Fatalf("b nodes = %d", e.Nodes)
			}
		}
	}
}
