// Package match drives a single game between two engines under a shared
// clock and records the result.
package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/badyast/testchess/internal/uci"
)

// Color identifies a side of the board.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Other flips the side.
func (c Color) Other() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// Outcome is the sealed result of a game.
type Outcome string

const (
	OutcomeWhiteWins Outcome = "white"
	OutcomeBlackWins Outcome = "black"
	OutcomeDraw      Outcome = "draw"
	OutcomeAborted   Outcome = "aborted"
)

// Reason explains how the outcome came about.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonFiftyMoves           Reason = "fifty_move_rule"
	ReasonRepetition           Reason = "threefold_repetition"
	ReasonResignation          Reason = "resignation"
	ReasonTimeout              Reason = "time_forfeit"
	ReasonIllegalMove          Reason = "illegal_move"
	ReasonCrash                Reason = "engine_crash"
	ReasonMoveCap              Reason = "move_cap"
	ReasonAborted              Reason = "aborted"
)

// TimeControl is the per-side clock: base time plus a per-move increment,
// both in milliseconds.
type TimeControl struct {
	BaseMS int64
	IncMS  int64
}

// Validate rejects controls a game cannot be played under.
func (tc TimeControl) Validate() error {
	if tc.BaseMS <= 0 {
		return fmt.Errorf("time control base must be positive, got %dms", tc.BaseMS)
	}
	if tc.IncMS < 0 {
		return fmt.Errorf("time control increment must not be negative, got %dms", tc.IncMS)
	}
	return nil
}

// String renders the conventional base+increment form in seconds.
func (tc TimeControl) String() string {
	return fmt.Sprintf("%d+%d", tc.BaseMS/1000, tc.IncMS/1000)
}

// clock tracks both sides' remaining time. Remaining time never goes
// negative: a deduction past zero clamps and reports the flag fall.
type clock struct {
	whiteMS int64
	blackMS int64
}

func newClock(tc TimeControl) *clock {
	return &clock{whiteMS: tc.BaseMS, blackMS: tc.BaseMS}
}

func (c *clock) remaining(col Color) int64 {
	if col == ColorWhite {
		return c.whiteMS
	}
	return c.blackMS
}

// deduct charges elapsed time to a side. Returns true when the side's
// flag fell.
func (c *clock) deduct(col Color, elapsedMS int64) bool {
	rem := c.remaining(col) - elapsedMS
	if rem < 0 {
		rem = 0
	}
	c.set(col, rem)
	return rem == 0
}

func (c *clock) credit(col Color, incMS int64) {
	c.set(col, c.remaining(col)+incMS)
}

func (c *clock) set(col Color, ms int64) {
	if col == ColorWhite {
		c.whiteMS = ms
	} else {
		c.blackMS = ms
	}
}

// MoveInfo is one played move with its cost and the search telemetry the
// engine reported while choosing it. Book moves carry no telemetry.
type MoveInfo struct {
	UCI       string
	SAN       string
	Color     Color
	ElapsedMS int64
	Book      bool
	Telemetry uci.Telemetry
}

// Record is the full account of one game. It is written once by the
// controller and read-only afterwards.
type Record struct {
	ID          string
	White       string
	Black       string
	Opening     string
	TimeControl TimeControl

	Moves    []MoveInfo
	Outcome  Outcome
	Reason   Reason
	FinalFEN string

	ClockWhiteMS int64
	ClockBlackMS int64
	NodesWhite   int64
	NodesBlack   int64

	StartedAt time.Time
	EndedAt   time.Time
}

func newRecord(white, black, opening string, tc TimeControl) *Record {
	return &Record{
		ID:          uuid.NewString(),
		White:       white,
		Black:       black,
		Opening:     opening,
		TimeControl: tc,
		StartedAt:   time.Now(),
	}
}

// Winner names the winning engine. The bool is false for draws and
// aborted games.
func (r *Record) Winner() (string, bool) {
	switch r.Outcome {
	case OutcomeWhiteWins:
		return r.White, true
	case OutcomeBlackWins:
		return r.Black, true
	}
	return "", false
}

// Walkover seals a game that was never played because one side could not
// come to the board.
func Walkover(white, black string, loser Color, tc TimeControl) *Record {
	rec := newRecord(white, black, "", tc)
	rec.Outcome = lossFor(loser)
	rec.Reason = ReasonCrash
	rec.EndedAt = rec.StartedAt
	return rec
}

// MoveUCIs returns the played line in UCI notation.
func (r *Record) MoveUCIs() []string {
	out := make([]string, len(r.Moves))
	for i, m := range r.Moves {
		out[i] = m.UCI
	}
	return out
}
