package match

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/badyast/testchess/internal/uci"
)

// stubEngine is a scripted mover standing in for a live session.
type stubEngine struct {
	name       string
	history    []string
	newGameErr error
	pick       func(history []string, limits uci.Limits) (uci.MoveResult, error)
}

func (s *stubEngine) Name() string                      { return s.name }
func (s *stubEngine) NewGame(_ context.Context) error   { return s.newGameErr }
func (s *stubEngine) SetPosition(moves []string) error {
	s.history = append([]string(nil), moves...)
	return nil
}

func (s *stubEngine) Go(_ context.Context, limits uci.Limits) (uci.MoveResult, error) {
	return s.pick(s.history, limits)
}

// scriptedMover plays its moves in order, then resigns.
func scriptedMover(name string, moves ...string) *stubEngine {
	idx := 0
	s := &stubEngine{name: name}
	s.pick = func(_ []string, _ uci.Limits) (uci.MoveResult, error) {
		if idx >= len(moves) {
			return uci.MoveResult{BestMove: "(none)"}, nil
		}
		mv := moves[idx]
		idx++
		return uci.MoveResult{BestMove: mv}, nil
	}
	return s
}

// cyclicMover repeats its move cycle forever.
func cyclicMover(name string, moves ...string) *stubEngine {
	idx := 0
	s := &stubEngine{name: name}
	s.pick = func(_ []string, _ uci.Limits) (uci.MoveResult, error) {
		mv := moves[idx%len(moves)]
		idx++
		return uci.MoveResult{BestMove: mv}, nil
	}
	return s
}

var fastTC = TimeControl{BaseMS: 60_000}

func TestPlayCheckmate(t *testing.T) {
	white := scriptedMover("loser", "f2f3", "g2g4")
	black := scriptedMover("winner", "e7e5", "d8h4")
	rec := New(white, black, Config{TimeControl: fastTC}).Play(context.Background())

	if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonCheckmate {
		t.Fatalf("outcome = %s/%s, want black/checkmate", rec.Outcome, rec.Reason)
	}
	if len(rec.Moves) != 4 {
		t.Fatalf("moves = %d, want 4", len(rec.Moves))
	}
	if name, ok := rec.Winner(); !ok || name != "winner" {
		t.Fatalf("winner = %q %v", name, ok)
	}
	if rec.Moves[3].SAN != "Qh4#" {
		t.Fatalf("final SAN = %q, want Qh4#", rec.Moves[3].SAN)
	}
	if rec.FinalFEN == "" || rec.ID == "" {
		t.Fatalf("record not sealed: %+v", rec)
	}
}

func TestTimeoutLossClampsClockAtZero(t *testing.T) {
	white := &stubEngine{name: "slow"}
	white.pick = func(_ []string, _ uci.Limits) (uci.MoveResult, error) {
		time.Sleep(60 * time.Millisecond)
		return uci.MoveResult{BestMove: "e2e4"}, nil
	}
	black := scriptedMover("fast", "e7e5")

	rec := New(white, black, Config{TimeControl: TimeControl{BaseMS: 40}}).Play(context.Background())
	if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonTimeout {
		t.Fatalf("outcome = %s/%s, want black/time_forfeit", rec.Outcome, rec.Reason)
	}
	if rec.ClockWhiteMS != 0 {
		t.Fatalf("white clock = %d, want 0", rec.ClockWhiteMS)
	}
	if rec.ClockBlackMS < 0 {
		t.Fatalf("black clock negative: %d", rec.ClockBlackMS)
	}
}

func TestResignationTokens(t *testing.T) {
	for _, token := range []string{"", "(none)", "0000", "resign"} {
		white := scriptedMover("resigner", token)
		black := scriptedMover("opponent", "e7e5")
		rec := New(white, black, Config{TimeControl: fastTC}).Play(context.Background())
		if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonResignation {
			t.Fatalf("token %q: outcome = %s/%s", token, rec.Outcome, rec.Reason)
		}
	}
}

func TestIllegalMoveLoss(t *testing.T) {
	white := scriptedMover("cheater", "e2e5")
	black := scriptedMover("opponent", "e7e5")
	rec := New(white, black, Config{TimeControl: fastTC}).Play(context.Background())
	if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonIllegalMove {
		t.Fatalf("outcome = %s/%s, want black/illegal_move", rec.Outcome, rec.Reason)
	}
}

func TestMoveCapAdjudicatesDraw(t *testing.T) {
	white := cyclicMover("shuffler-w", "g1f3", "f3g1")
	black := cyclicMover("shuffler-b", "g8f6", "f6g8")
	rec := New(white, black, Config{TimeControl: fastTC, MaxMoves: 6}).Play(context.Background())
	if rec.Outcome != OutcomeDraw || rec.Reason != ReasonMoveCap {
		t.Fatalf("outcome = %s/%s, want draw/move_cap", rec.Outcome, rec.Reason)
	}
	if len(rec.Moves) != 6 {
		t.Fatalf("moves = %d, want 6", len(rec.Moves))
	}
}

func TestThreefoldRepetitionDraw(t *testing.T) {
	white := cyclicMover("shuffler-w", "g1f3", "f3g1")
	black := cyclicMover("shuffler-b", "g8f6", "f6g8")
	rec := New(white, black, Config{TimeControl: fastTC, MaxMoves: 40}).Play(context.Background())
	if rec.Outcome != OutcomeDraw || rec.Reason != ReasonRepetition {
		t.Fatalf("outcome = %s/%s, want draw/threefold_repetition", rec.Outcome, rec.Reason)
	}
	if len(rec.Moves) >= 40 {
		t.Fatalf("repetition never claimed, ran to the cap")
	}
}

func TestOpeningMovesSeedTheGame(t *testing.T) {
	white := scriptedMover("w") // resigns on its first turn
	black := scriptedMover("b")
	cfg := Config{
		TimeControl:  fastTC,
		Opening:      "King's Pawn Game",
		OpeningMoves: []string{"e2e4", "e7e5"},
	}
	rec := New(white, black, cfg).Play(context.Background())

	if len(rec.Moves) != 2 || !rec.Moves[0].Book || !rec.Moves[1].Book {
		t.Fatalf("book moves not recorded: %+v", rec.Moves)
	}
	if len(white.history) != 2 || white.history[0] != "e2e4" {
		t.Fatalf("engine did not see the opening: %v", white.history)
	}
	if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonResignation {
		t.Fatalf("outcome = %s/%s", rec.Outcome, rec.Reason)
	}
	if rec.Opening != "King's Pawn Game" {
		t.Fatalf("opening = %q", rec.Opening)
	}
}

func TestIllegalOpeningMoveStopsTheLine(t *testing.T) {
	white := scriptedMover("w")
	black := scriptedMover("b")
	cfg := Config{
		TimeControl:  fastTC,
		OpeningMoves: []string{"e2e4", "e2e4", "g1f3"},
	}
	rec := New(white, black, cfg).Play(context.Background())
	// only the legal prefix applies; black moves next
	if len(rec.Moves) < 1 || rec.Moves[0].UCI != "e2e4" {
		t.Fatalf("moves = %+v", rec.Moves)
	}
	if rec.Outcome != OutcomeWhiteWins || rec.Reason != ReasonResignation {
		t.Fatalf("outcome = %s/%s, want white/resignation", rec.Outcome, rec.Reason)
	}
}

func TestEngineCrashIsDecisive(t *testing.T) {
	white := &stubEngine{name: "fragile"}
	white.pick = func(_ []string, _ uci.Limits) (uci.MoveResult, error) {
		return uci.MoveResult{}, uci.ErrEngineCrash
	}
	black := scriptedMover("sturdy", "e7e5")
	rec := New(white, black, Config{TimeControl: fastTC}).Play(context.Background())
	if rec.Outcome != OutcomeBlackWins || rec.Reason != ReasonCrash {
		t.Fatalf("outcome = %s/%s, want black/engine_crash", rec.Outcome, rec.Reason)
	}
}

func TestCancelledContextAbortsGame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	white := scriptedMover("w", "e2e4")
	black := scriptedMover("b", "e7e5")
	rec := New(white, black, Config{TimeControl: fastTC}).Play(ctx)
	if rec.Outcome != OutcomeAborted || rec.Reason != ReasonAborted {
		t.Fatalf("outcome = %s/%s, want aborted", rec.Outcome, rec.Reason)
	}
	if _, ok := rec.Winner(); ok {
		t.Fatalf("aborted game has a winner")
	}
}

// cancellingStarter cancels the run from inside its ucinewgame, standing
// in for a shutdown landing while the game is being set up.
type cancellingStarter struct {
	*stubEngine
	cancel context.CancelFunc
}

func (s *cancellingStarter) NewGame(_ context.Context) error {
	s.cancel()
	return context.Canceled
}

func TestCancellationDuringGameStartAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	white := &cancellingStarter{stubEngine: scriptedMover("w", "e2e4"), cancel: cancel}
	black := scriptedMover("b", "e7e5")
	rec := New(white, black, Config{TimeControl: fastTC}).Play(ctx)
	if rec.Outcome != OutcomeAborted || rec.Reason != ReasonAborted {
		t.Fatalf("outcome = %s/%s, want aborted, not a crash loss", rec.Outcome, rec.Reason)
	}
	if _, ok := rec.Winner(); ok {
		t.Fatalf("aborted game has a winner")
	}
}

func TestIncrementCreditsAfterEachMove(t *testing.T) {
	white := scriptedMover("loser", "f2f3", "g2g4")
	black := scriptedMover("winner", "e7e5", "d8h4")
	cfg := Config{TimeControl: TimeControl{BaseMS: 1000, IncMS: 200}}
	rec := New(white, black, cfg).Play(context.Background())

	// two instant moves per side, each crediting the increment
	if rec.ClockWhiteMS <= 1000 {
		t.Fatalf("white clock = %d, want above base", rec.ClockWhiteMS)
	}
	if rec.ClockBlackMS <= 1000 {
		t.Fatalf("black clock = %d, want above base", rec.ClockBlackMS)
	}
}

func TestEventsEmittedPerMove(t *testing.T) {
	events := make(chan Event, 16)
	white := scriptedMover("loser", "f2f3", "g2g4")
	black := scriptedMover("winner", "e7e5", "d8h4")
	rec := New(white, black, Config{TimeControl: fastTC}, WithEvents(events)).Play(context.Background())
	close(events)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 4 {
		t.Fatalf("events = %d, want 4", len(got))
	}
	for i, ev := range got {
		if ev.GameID != rec.ID || ev.MoveNumber != i+1 || ev.FEN == "" {
			t.Fatalf("event %d = %+v", i, ev)
		}
		if ev.ClockWhiteMS < 0 || ev.ClockBlackMS < 0 {
			t.Fatalf("negative clock in event: %+v", ev)
		}
	}
}

func TestTimeControlValidate(t *testing.T) {
	if err := (TimeControl{BaseMS: 60_000, IncMS: 500}).Validate(); err != nil {
		t.Fatalf("valid control rejected: %v", err)
	}
	if err := (TimeControl{}).Validate(); err == nil {
		t.Fatalf("zero base accepted")
	}
	if err := (TimeControl{BaseMS: 1000, IncMS: -1}).Validate(); err == nil {
		t.Fatalf("negative increment accepted")
	}
}

func TestPGNExport(t *testing.T) {
	white := scriptedMover("loser", "f2f3", "g2g4")
	black := scriptedMover("winner", "e7e5", "d8h4")
	rec := New(white, black, Config{TimeControl: TimeControl{BaseMS: 60_000}}).Play(context.Background())

	pgn := rec.PGN()
	for _, want := range []string{`[White "loser"]`, `[Black "winner"]`, `[Result "0-1"]`, "Qh4#", "0-1"} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
}
