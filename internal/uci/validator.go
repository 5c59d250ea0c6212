package uci

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/obslog"
)

// Check is one validation stage outcome.
type Check struct {
	Name   string
	Passed bool
}

// Report summarizes an engine's protocol conformance: a score out of 100,
// hard issues, and soft warnings. Compatible requires a clean issue list
// and a score of at least 70.
type Report struct {
	Engine   string
	Score    float64
	Passed   int
	Total    int
	Checks   []Check
	Issues   []string
	Warnings []string

	Compatible bool
}

// ValidateOptions tunes the probe. SearchBudgetMS bounds how long each
// search stage may run before it counts as failed.
type ValidateOptions struct {
	SearchBudgetMS int64
	StopAfter      time.Duration
}

func (o ValidateOptions) withDefaults() ValidateOptions {
	if o.SearchBudgetMS <= 0 {
		o.SearchBudgetMS = 10_000
	}
	if o.StopAfter <= 0 {
		o.StopAfter = 300 * time.Millisecond
	}
	return o
}

type validator struct {
	report Report
	opts   ValidateOptions
}

func (v *validator) check(name string, passed bool, issue string) {
	v.report.Checks = append(v.report.Checks, Check{Name: name, Passed: passed})
	if passed {
		v.report.Passed++
	} else if issue != "" {
		v.report.Issues = append(v.report.Issues, issue)
	}
	v.report.Total++
}

func (v *validator) warn(msg string) {
	v.report.Warnings = append(v.report.Warnings, msg)
}

// Validate drives a diagnostic pass over a session: launch, handshake,
// position acceptance, depth-limited search, clock-driven search, and stop
// handling. The session is consumed through its public API only and is
// terminated before returning; no persistent side effects.
func Validate(ctx context.Context, s *Session) Report {
	return ValidateWith(ctx, s, ValidateOptions{})
}

// ValidateWith runs the same pass with explicit probe budgets.
func ValidateWith(ctx context.Context, s *Session, opts ValidateOptions) Report {
	v := &validator{report: Report{Engine: s.Name()}, opts: opts.withDefaults()}
	defer s.Quit()

	if err := s.Start(); err != nil {
		v.check("startup", false, fmt.Sprintf("engine failed to start: %v", err))
		return v.finish()
	}
	v.check("startup", true, "")

	if err := s.Handshake(ctx); err != nil {
		v.check("handshake", false, fmt.Sprintf("handshake failed: %v", err))
		return v.finish()
	}
	v.check("handshake", true, "")

	declared := s.Options()
	if _, ok := declared["Hash"]; !ok {
		v.warn("no Hash option declared")
	}
	if _, ok := declared["Threads"]; !ok {
		v.warn("no Threads option declared")
	}
	if !s.SupportsMateSearch() {
		v.warn("no mate search support detected")
	}

	v.testPositions(ctx, s)
	v.testSearch(ctx, s)
	v.testTimedSearch(ctx, s)
	v.testStop(ctx, s)

	return v.finish()
}

func (v *validator) testPositions(ctx context.Context, s *Session) {
	const fen = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	ok := s.SetPosition(nil) == nil && s.EnsureReady(ctx) == nil &&
		s.SetPosition([]string{"e2e4", "e7e5"}) == nil && s.EnsureReady(ctx) == nil &&
		s.SetPositionFEN(fen, nil) == nil && s.EnsureReady(ctx) == nil
	v.check("position", ok, issueIf(!ok, "position command rejected or engine unresponsive after it"))
}

func (v *validator) testSearch(ctx context.Context, s *Session) {
	if err := s.NewGame(ctx); err != nil {
		v.check("search", false, fmt.Sprintf("ucinewgame failed: %v", err))
		return
	}
	_ = s.SetPosition(nil)
	res, err := s.Go(ctx, Limits{Depth: 5, BudgetMS: v.opts.SearchBudgetMS})
	ok := err == nil && len(res.BestMove) >= 4
	v.check("search", ok, issueIf(!ok, "depth-limited search produced no bestmove"))
	if ok && res.Telemetry.Depth == 0 && res.Telemetry.Nodes == 0 && len(res.Telemetry.PV) == 0 {
		v.warn("no info lines during search")
	}
}

func (v *validator) testTimedSearch(ctx context.Context, s *Session) {
	if err := s.NewGame(ctx); err != nil {
		v.check("time_management", false, fmt.Sprintf("ucinewgame failed: %v", err))
		return
	}
	_ = s.SetPosition(nil)
	budget := v.opts.SearchBudgetMS
	if budget > 1000 {
		budget = 1000
	}
	res, err := s.Go(ctx, Limits{WTimeMS: 1000, BTimeMS: 1000, BudgetMS: budget})
	ok := err == nil && res.BestMove != ""
	v.check("time_management", ok, issueIf(!ok, "clock-driven search produced no bestmove"))
}

func (v *validator) testStop(ctx context.Context, s *Session) {
	if err := s.NewGame(ctx); err != nil {
		v.check("stop", false, "")
		v.warn(fmt.Sprintf("stop check skipped: %v", err))
		return
	}
	_ = s.SetPosition(nil)

	type goResult struct {
		res MoveResult
		err error
	}
	done := make(chan goResult, 1)
	go func() {
		res, err := s.Go(ctx, Limits{Infinite: true, BudgetMS: v.opts.SearchBudgetMS})
		done <- goResult{res, err}
	}()

	time.Sleep(v.opts.StopAfter)
	s.Stop()

	r := <-done
	ok := r.err == nil && r.res.BestMove != ""
	v.check("stop", ok, "")
	if !ok {
		v.warn("stop command may not terminate an infinite search")
	}
}

func (v *validator) finish() Report {
	if v.report.Total > 0 {
		v.report.Score = float64(v.report.Passed) / float64(v.report.Total) * 100
	}
	v.report.Compatible = len(v.report.Issues) == 0 && v.report.Score >= 70
	obslog.L().Info("uci_validate_done",
		zap.String("engine", v.report.Engine),
		zap.Float64("score", v.report.Score),
		zap.Int("issues", len(v.report.Issues)),
		zap.Int("warnings", len(v.report.Warnings)),
		zap.Bool("compatible", v.report.Compatible),
	)
	return v.report
}

func issueIf(cond bool, msg string) string {
	if cond {
		return msg
	}
	return ""
}
