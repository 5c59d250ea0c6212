package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/book"
	appcfg "github.com/badyast/testchess/internal/config"
	"github.com/badyast/testchess/internal/live"
	"github.com/badyast/testchess/internal/match"
	"github.com/badyast/testchess/internal/obslog"
	"github.com/badyast/testchess/internal/registry"
	"github.com/badyast/testchess/internal/tournament"
	"github.com/badyast/testchess/internal/uci"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var (
		name        = flag.String("name", "arena", "tournament name")
		enginesPath = flag.String("engines", cfg.RegistryPath, "engine registry YAML")
		players     = flag.String("players", "", "comma-separated engine names (default: all enabled)")
		format      = flag.String("format", "roundrobin", "roundrobin or gauntlet")
		challenger  = flag.String("challenger", "", "challenger engine (gauntlet)")
		rounds      = flag.Int("rounds", 1, "number of rounds")
		baseMS      = flag.Int64("tc", 60_000, "base time per side in ms")
		incMS       = flag.Int64("inc", 0, "increment per move in ms")
		maxMoves    = flag.Int("max-moves", cfg.MaxMoves, "adjudicate a draw after this many moves")
		concurrency = flag.Int("concurrency", cfg.GameConcurrency, "games in flight at once")
		bookPath    = flag.String("book", cfg.BookPath, "polyglot .bin opening book (default: built-in suite)")
		bookPly     = flag.Int("book-ply", cfg.OpeningMaxPly, "maximum book line depth in plies")
		seed        = flag.Int64("seed", cfg.OpeningSeed, "opening selection seed (0 = time-based)")
		pgnDir      = flag.String("pgn-dir", "", "write one PGN file per game into this directory")
	)
	flag.Parse()

	obslog.InitFromEnv()
	defer func() { _ = obslog.L().Sync() }()

	reg, err := registry.Load(*enginesPath)
	if err != nil {
		log.Fatalf("engine registry error: %v", err)
	}
	names := reg.Names()
	if *players != "" {
		names = splitList(*players)
	}
	for _, n := range names {
		if _, ok := reg.Get(n); !ok {
			log.Fatalf("engine %q not in registry %s", n, *enginesPath)
		}
	}

	openings, err := openingSource(*bookPath, *bookPly)
	if err != nil {
		log.Fatalf("opening book error: %v", err)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var feed *live.Feed
	if cfg.RedisURL != "" {
		feed, err = live.NewFeed(cfg.RedisURL, "", cfg.EventBuffer)
		if err != nil {
			log.Fatalf("live feed error: %v", err)
		}
		defer feed.Close()
	}

	sessionCfg := uci.Config{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadyTimeout:     cfg.ReadyTimeout,
		QuitTimeout:      cfg.QuitTimeout,
		SearchGrace:      cfg.SearchGrace,
	}
	base := &tournament.SessionFactory{Registry: reg, Session: sessionCfg}
	var factory tournament.EngineFactory = base
	if *concurrency <= 1 {
		cached := &tournament.CachedSessionFactory{Inner: base}
		defer cached.Close()
		factory = cached
	}

	tcfg := tournament.Config{
		Name:        *name,
		Format:      tournament.Format(*format),
		Challenger:  *challenger,
		Rounds:      *rounds,
		TimeControl: match.TimeControl{BaseMS: *baseMS, IncMS: *incMS},
		MaxMoves:    *maxMoves,
		Concurrency: *concurrency,
		Seed:        *seed,
		Openings:    openings,
	}
	if tcfg.Format == tournament.FormatGauntlet {
		tcfg.Engines = withoutName(names, *challenger)
	} else {
		tcfg.Engines = names
	}
	if feed != nil {
		tcfg.Events = feed.Events()
		tcfg.Results = feed
	}

	runner, err := tournament.NewRunner(tcfg, factory)
	if err != nil {
		log.Fatalf("tournament setup error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("tournament error: %v", err)
	}

	if *pgnDir != "" {
		for _, rec := range res.Games {
			if rec != nil {
				writePGN(*pgnDir, rec)
			}
		}
	}

	printStandings(os.Stdout, res)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func withoutName(names []string, skip string) []string {
	var out []string
	for _, n := range names {
		if n != skip {
			out = append(out, n)
		}
	}
	return out
}

func openingSource(bookPath string, maxPly int) (tournament.OpeningSource, error) {
	if bookPath == "" {
		return tournament.SuiteOpenings{Suite: book.CommonSuite()}, nil
	}
	b, err := book.Load(bookPath)
	if err != nil {
		return nil, err
	}
	return tournament.BookOpenings{Book: b, MaxPly: maxPly}, nil
}

func writePGN(dir string, rec *match.Record) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		obslog.L().Warn("pgn_dir_error", zap.Error(err))
		return
	}
	path := filepath.Join(dir, rec.ID+".pgn")
	if err := os.WriteFile(path, []byte(rec.PGN()), 0o644); err != nil {
		obslog.L().Warn("pgn_write_error", zap.String("path", path), zap.Error(err))
	}
}

func printStandings(out *os.File, res *tournament.Result) {
	fmt.Fprintf(out, "\n%s (%s): %d games played, %d skipped, %s elapsed\n\n",
		res.Name, res.Format, res.Played, res.Skipped, res.EndedAt.Sub(res.StartedAt).Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tEngine\tGames\tW\tD\tL\tPoints\tScore%\tW-white\tW-black\tNodes")
	for i, e := range res.Standings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t%d\t%d\t%d\n",
			i+1, e.Engine, e.Games, e.Wins, e.Draws, e.Losses,
			e.Points, e.ScorePercent(), e.WinsAsWhite, e.WinsAsBlack, e.Nodes)
	}
	_ = w.Flush()
}
