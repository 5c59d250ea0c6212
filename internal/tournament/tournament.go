package tournament

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/badyast/testchess/internal/match"
	"github.com/badyast/testchess/internal/obslog"
)

// Format selects the pairing scheme.
type Format string

const (
	FormatRoundRobin Format = "roundrobin"
	FormatGauntlet   Format = "gauntlet"
)

// EngineFactory produces a playable engine for a named participant. The
// release func returns the engine when the game is over; factories that
// reuse sessions may make it a no-op.
type EngineFactory interface {
	New(ctx context.Context, name string) (match.Engine, func(), error)
}

// OpeningSource supplies one opening line per game.
type OpeningSource interface {
	Opening(rng *rand.Rand) (name string, moves []string)
}

// ResultSink receives each sealed record as soon as it is scored, while
// the tournament is still running. *live.Feed satisfies it.
type ResultSink interface {
	PublishResult(ctx context.Context, rec *match.Record) error
}

// Config describes one tournament.
type Config struct {
	Name        string
	Format      Format
	Engines     []string
	Challenger  string // gauntlet only
	Rounds      int
	TimeControl match.TimeControl
	MaxMoves    int
	Concurrency int
	Seed        int64
	Openings    OpeningSource      // nil plays every game from the start position
	Events      chan<- match.Event // per-move events, may be nil
	Results     ResultSink         // nil disables result publishing
}

func (c Config) withDefaults() Config {
	if c.Rounds <= 0 {
		c.Rounds = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

func (c Config) validate() error {
	if err := c.TimeControl.Validate(); err != nil {
		return err
	}
	switch c.Format {
	case FormatRoundRobin:
		if len(c.Engines) < 2 {
			return fmt.Errorf("round robin needs at least 2 engines, got %d", len(c.Engines))
		}
	case FormatGauntlet:
		if c.Challenger == "" {
			return fmt.Errorf("gauntlet needs a challenger")
		}
		if len(c.Engines) < 1 {
			return fmt.Errorf("gauntlet needs at least 1 opponent")
		}
	default:
		return fmt.Errorf("unknown tournament format %q", c.Format)
	}
	return nil
}

// Result is the final account of a tournament run.
type Result struct {
	Name      string
	Format    Format
	Games     []*match.Record
	Standings []Entry
	Played    int
	Skipped   int
	StartedAt time.Time
	EndedAt   time.Time
}

// Runner plays a full tournament schedule.
type Runner struct {
	cfg     Config
	factory EngineFactory
	log     *zap.Logger
}

// NewRunner builds a runner. cfg must validate.
func NewRunner(cfg Config, factory EngineFactory) (*Runner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, factory: factory, log: obslog.L()}, nil
}

// participants are all engine names involved, challenger first for a
// gauntlet.
func (r *Runner) participants() []string {
	if r.cfg.Format == FormatGauntlet {
		return append([]string{r.cfg.Challenger}, r.cfg.Engines...)
	}
	return r.cfg.Engines
}

func (r *Runner) schedule() []Game {
	if r.cfg.Format == FormatGauntlet {
		return Gauntlet(r.cfg.Challenger, r.cfg.Engines, r.cfg.Rounds)
	}
	return RoundRobin(r.cfg.Engines, r.cfg.Rounds)
}

// Run plays the whole schedule. Games run with at most cfg.Concurrency
// in flight. One game failing does not stop the tournament; an engine
// that cannot launch or complete its handshake forfeits the game and is
// excluded from the rest of the schedule. Cancelling ctx stops the run
// after the games already in flight have sealed.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	schedule := r.schedule()
	table := NewTable(r.participants()...)
	res := &Result{
		Name:      r.cfg.Name,
		Format:    r.cfg.Format,
		Games:     make([]*match.Record, len(schedule)),
		StartedAt: time.Now(),
	}

	r.log.Info("tournament_start",
		zap.String("name", r.cfg.Name),
		zap.String("format", string(r.cfg.Format)),
		zap.Int("games", len(schedule)),
		zap.Int("rounds", r.cfg.Rounds),
		zap.String("time_control", r.cfg.TimeControl.String()),
	)

	// openings are drawn up front so the assignment does not depend on
	// game completion order
	openings := r.drawOpenings(len(schedule))

	excluded := newExclusionSet()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, game := range schedule {
		i, game := i, game
		g.Go(func() error {
			rec := r.playGame(ctx, game, openings[i], excluded)
			if rec == nil {
				return nil
			}
			res.Games[i] = rec
			table.Apply(rec)
			r.publishResult(rec)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range res.Games {
		if rec != nil {
			res.Played++
		} else {
			res.Skipped++
		}
	}
	res.Standings = table.Snapshot()
	res.EndedAt = time.Now()

	r.log.Info("tournament_done",
		zap.String("name", r.cfg.Name),
		zap.Int("played", res.Played),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", res.EndedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// playGame acquires both engines and runs one game. Returns nil when the
// game cannot be scored at all (both sides excluded, or the run was
// cancelled before the game started).
func (r *Runner) playGame(ctx context.Context, game Game, opening drawnOpening, excluded *exclusionSet) *match.Record {
	if ctx.Err() != nil {
		return nil
	}

	whiteOut := excluded.has(game.White)
	blackOut := excluded.has(game.Black)
	switch {
	case whiteOut && blackOut:
		return nil
	case whiteOut:
		return match.Walkover(game.White, game.Black, match.ColorWhite, r.cfg.TimeControl)
	case blackOut:
		return match.Walkover(game.White, game.Black, match.ColorBlack, r.cfg.TimeControl)
	}

	white, releaseWhite, err := r.factory.New(ctx, game.White)
	if err != nil {
		r.excludeEngine(excluded, game.White, err)
		return match.Walkover(game.White, game.Black, match.ColorWhite, r.cfg.TimeControl)
	}
	defer releaseWhite()

	black, releaseBlack, err := r.factory.New(ctx, game.Black)
	if err != nil {
		r.excludeEngine(excluded, game.Black, err)
		return match.Walkover(game.White, game.Black, match.ColorBlack, r.cfg.TimeControl)
	}
	defer releaseBlack()

	r.log.Info("game_start",
		zap.Int("number", game.Number),
		zap.Int("round", game.Round),
		zap.String("white", game.White),
		zap.String("black", game.Black),
		zap.String("opening", opening.name),
	)

	cfg := match.Config{
		TimeControl:  r.cfg.TimeControl,
		MaxMoves:     r.cfg.MaxMoves,
		Opening:      opening.name,
		OpeningMoves: opening.moves,
	}
	var opts []match.Option
	if r.cfg.Events != nil {
		opts = append(opts, match.WithEvents(r.cfg.Events))
	}
	return match.New(white, black, cfg, opts...).Play(ctx)
}

// publishResult forwards a sealed record to the sink. Uses a fresh
// context so records sealed by a cancelled run still go out.
func (r *Runner) publishResult(rec *match.Record) {
	if r.cfg.Results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.cfg.Results.PublishResult(ctx, rec); err != nil {
		r.log.Warn("result_publish_error", zap.String("game_id", rec.ID), zap.Error(err))
	}
}

func (r *Runner) excludeEngine(excluded *exclusionSet, name string, err error) {
	if excluded.add(name) {
		r.log.Warn("engine_excluded", zap.String("engine", name), zap.Error(err))
	}
}

type drawnOpening struct {
	name  string
	moves []string
}

func (r *Runner) drawOpenings(n int) []drawnOpening {
	out := make([]drawnOpening, n)
	if r.cfg.Openings == nil {
		return out
	}
	rng := rand.New(rand.NewSource(r.cfg.Seed))
	for i := range out {
		name, moves := r.cfg.Openings.Opening(rng)
		out[i] = drawnOpening{name: name, moves: moves}
	}
	return out
}
