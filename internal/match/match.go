package match

import (
	"context"
	"errors"
	"strings"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/obslog"
	"github.com/badyast/testchess/internal/uci"
)

// Engine is the slice of an engine session a game needs. *uci.Session
// satisfies it; tests substitute scripted movers.
type Engine interface {
	Name() string
	NewGame(ctx context.Context) error
	SetPosition(moves []string) error
	Go(ctx context.Context, limits uci.Limits) (uci.MoveResult, error)
}

// resignTokens are bestmove payloads treated as a resignation rather
// than a move.
func isResignToken(best string) bool {
	switch strings.ToLower(strings.TrimSpace(best)) {
	case "", "(none)", "0000", "resign":
		return true
	}
	return false
}

// Config tunes one game.
type Config struct {
	TimeControl  TimeControl
	MaxMoves     int
	Opening      string
	OpeningMoves []string
}

func (c Config) withDefaults() Config {
	if c.MaxMoves <= 0 {
		c.MaxMoves = 400
	}
	return c
}

// Controller plays one game between two engines. The controller does not
// own the sessions: launching and quitting them is the caller's job.
type Controller struct {
	white  Engine
	black  Engine
	cfg    Config
	events chan<- Event
	log    *zap.Logger
}

// Option adjusts a controller.
type Option func(*Controller)

// WithEvents streams per-move events into ch. Sends never block: when the
// channel is full the event is dropped.
func WithEvents(ch chan<- Event) Option {
	return func(c *Controller) { c.events = ch }
}

// New builds a game controller. cfg.TimeControl must validate.
func New(white, black Engine, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		white: white,
		black: black,
		cfg:   cfg.withDefaults(),
		log:   obslog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play runs the game to completion and returns the sealed record. The
// record always carries an outcome: engine failures become losses for
// the failing side, context cancellation seals the game as aborted.
func (c *Controller) Play(ctx context.Context) *Record {
	rec := newRecord(c.white.Name(), c.black.Name(), c.cfg.Opening, c.cfg.TimeControl)
	game := chesslib.NewGame()
	clk := newClock(c.cfg.TimeControl)

	defer func() {
		rec.FinalFEN = game.FEN()
		rec.ClockWhiteMS = clk.whiteMS
		rec.ClockBlackMS = clk.blackMS
		rec.EndedAt = time.Now()
		c.log.Info("game_finished",
			zap.String("game_id", rec.ID),
			zap.String("white", rec.White),
			zap.String("black", rec.Black),
			zap.String("outcome", string(rec.Outcome)),
			zap.String("reason", string(rec.Reason)),
			zap.Int("moves", len(rec.Moves)),
		)
	}()

	if ctx.Err() != nil {
		c.seal(rec, OutcomeAborted, ReasonAborted)
		return rec
	}
	if err := c.white.NewGame(ctx); err != nil {
		c.sealStartFailure(ctx, rec, ColorWhite)
		return rec
	}
	if err := c.black.NewGame(ctx); err != nil {
		c.sealStartFailure(ctx, rec, ColorBlack)
		return rec
	}

	history := c.applyOpening(game, rec)

	for game.Outcome() == chesslib.NoOutcome && len(rec.Moves) < c.cfg.MaxMoves {
		if ctx.Err() != nil {
			c.seal(rec, OutcomeAborted, ReasonAborted)
			return rec
		}

		mover := colorOf(game.Position().Turn())
		engine := c.white
		if mover == ColorBlack {
			engine = c.black
		}

		if err := engine.SetPosition(history); err != nil {
			c.seal(rec, lossFor(mover), ReasonCrash)
			return rec
		}

		limits := uci.Limits{
			WTimeMS:  clk.whiteMS,
			BTimeMS:  clk.blackMS,
			WIncMS:   c.cfg.TimeControl.IncMS,
			BIncMS:   c.cfg.TimeControl.IncMS,
			BudgetMS: clk.remaining(mover),
		}

		start := time.Now()
		res, err := engine.Go(ctx, limits)
		elapsedMS := time.Since(start).Milliseconds()

		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.seal(rec, OutcomeAborted, ReasonAborted)
			case errors.Is(err, uci.ErrSearchTimeout):
				clk.set(mover, 0)
				c.seal(rec, lossFor(mover), ReasonTimeout)
			default:
				c.seal(rec, lossFor(mover), ReasonCrash)
			}
			return rec
		}

		if clk.deduct(mover, elapsedMS) {
			c.seal(rec, lossFor(mover), ReasonTimeout)
			return rec
		}
		clk.credit(mover, c.cfg.TimeControl.IncMS)

		if isResignToken(res.BestMove) {
			c.seal(rec, lossFor(mover), ReasonResignation)
			return rec
		}

		pos := game.Position()
		if err := game.PushNotationMove(res.BestMove, chesslib.UCINotation{}, nil); err != nil {
			c.log.Warn("illegal_move",
				zap.String("game_id", rec.ID),
				zap.String("engine", engine.Name()),
				zap.String("move", res.BestMove),
			)
			c.seal(rec, lossFor(mover), ReasonIllegalMove)
			return rec
		}

		info := MoveInfo{
			UCI:       res.BestMove,
			SAN:       sanOfLast(game, pos),
			Color:     mover,
			ElapsedMS: elapsedMS,
			Telemetry: res.Telemetry,
		}
		history = append(history, res.BestMove)
		rec.Moves = append(rec.Moves, info)
		if mover == ColorWhite {
			rec.NodesWhite += res.Telemetry.Nodes
		} else {
			rec.NodesBlack += res.Telemetry.Nodes
		}

		c.emit(rec, game, clk, info)
		c.claimDraw(game)
	}

	c.sealFromBoard(rec, game)
	return rec
}

// applyOpening plays the configured book line onto the board. An illegal
// book move stops the line; the game continues from whatever prefix
// applied cleanly.
func (c *Controller) applyOpening(game *chesslib.Game, rec *Record) []string {
	var history []string
	for _, mv := range c.cfg.OpeningMoves {
		mover := colorOf(game.Position().Turn())
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			c.log.Warn("illegal_opening_move",
				zap.String("game_id", rec.ID),
				zap.String("move", mv),
			)
			break
		}
		history = append(history, mv)
		rec.Moves = append(rec.Moves, MoveInfo{UCI: mv, Color: mover, Book: true})
	}
	return history
}

// claimDraw claims fifty-move or threefold-repetition draws as soon as
// they become available.
func (c *Controller) claimDraw(game *chesslib.Game) {
	for _, m := range game.EligibleDraws() {
		if m == chesslib.FiftyMoveRule || m == chesslib.ThreefoldRepetition {
			if err := game.Draw(m); err == nil {
				return
			}
		}
	}
}

func (c *Controller) seal(rec *Record, outcome Outcome, reason Reason) {
	rec.Outcome = outcome
	rec.Reason = reason
}

// sealStartFailure resolves a ucinewgame failure: cancellation aborts the
// game, anything else is a crash loss for the failing side.
func (c *Controller) sealStartFailure(ctx context.Context, rec *Record, side Color) {
	if ctx.Err() != nil {
		c.seal(rec, OutcomeAborted, ReasonAborted)
		return
	}
	c.seal(rec, lossFor(side), ReasonCrash)
}

// sealFromBoard maps the board's own verdict onto the record, falling
// back to a move-cap adjudication draw when the cap ended the game.
func (c *Controller) sealFromBoard(rec *Record, game *chesslib.Game) {
	switch game.Outcome() {
	case chesslib.WhiteWon:
		c.seal(rec, OutcomeWhiteWins, reasonFromMethod(game.Method()))
	case chesslib.BlackWon:
		c.seal(rec, OutcomeBlackWins, reasonFromMethod(game.Method()))
	case chesslib.Draw:
		c.seal(rec, OutcomeDraw, reasonFromMethod(game.Method()))
	default:
		c.seal(rec, OutcomeDraw, ReasonMoveCap)
	}
}

func reasonFromMethod(m chesslib.Method) Reason {
	switch m {
	case chesslib.Checkmate:
		return ReasonCheckmate
	case chesslib.Stalemate:
		return ReasonStalemate
	case chesslib.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case chesslib.FiftyMoveRule, chesslib.SeventyFiveMoveRule:
		return ReasonFiftyMoves
	case chesslib.ThreefoldRepetition, chesslib.FivefoldRepetition:
		return ReasonRepetition
	case chesslib.Resignation:
		return ReasonResignation
	default:
		return Reason(strings.ToLower(m.String()))
	}
}

func lossFor(mover Color) Outcome {
	if mover == ColorWhite {
		return OutcomeBlackWins
	}
	return OutcomeWhiteWins
}

func colorOf(c chesslib.Color) Color {
	if c == chesslib.White {
		return ColorWhite
	}
	return ColorBlack
}

// sanOfLast encodes the most recent move against the position it was
// played from.
func sanOfLast(game *chesslib.Game, pos *chesslib.Position) string {
	moves := game.Moves()
	if len(moves) == 0 {
		return ""
	}
	last := moves[len(moves)-1]
	return chesslib.AlgebraicNotation{}.Encode(pos, last)
}
