package uci

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/obslog"
)

// State of a session's protocol machine. A session moves forward through
// these; Faulted is reachable from any non-terminal state.
type State string

const (
	StateNotStarted        State = "NOT_STARTED"
	StateLaunching         State = "LAUNCHING"
	StateAwaitingHandshake State = "AWAITING_HANDSHAKE"
	StateIdle              State = "IDLE"
	StateThinking          State = "THINKING"
	StateStopping          State = "STOPPING"
	StateTerminated        State = "TERMINATED"
	StateFaulted           State = "FAULTED"
)

// Config holds the session's timing knobs. Zero values fall back to
// defaults; operators tune these through internal/config.
type Config struct {
	HandshakeTimeout time.Duration
	ReadyTimeout     time.Duration
	QuitTimeout      time.Duration
	SearchGrace      time.Duration
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Second
	}
	if c.QuitTimeout <= 0 {
		c.QuitTimeout = 3 * time.Second
	}
	if c.SearchGrace <= 0 {
		c.SearchGrace = 2 * time.Second
	}
	return c
}

// Limits are the constraints handed to a search. BudgetMS is the wall-clock
// window the caller grants before the session declares a timeout; when zero
// it is derived from MoveTimeMS, or falls back to a generous default for
// depth/node-limited searches.
type Limits struct {
	WTimeMS  int64
	BTimeMS  int64
	WIncMS   int64
	BIncMS   int64
	MoveTime int64
	Depth    int
	Nodes    int64
	Infinite bool

	BudgetMS int64
}

func (l Limits) goCommand() string {
	parts := []string{"go"}
	if l.Infinite {
		return "go infinite"
	}
	if l.WTimeMS > 0 {
		parts = append(parts, "wtime", strconv.FormatInt(l.WTimeMS, 10))
	}
	if l.BTimeMS > 0 {
		parts = append(parts, "btime", strconv.FormatInt(l.BTimeMS, 10))
	}
	if l.WIncMS > 0 {
		parts = append(parts, "winc", strconv.FormatInt(l.WIncMS, 10))
	}
	if l.BIncMS > 0 {
		parts = append(parts, "binc", strconv.FormatInt(l.BIncMS, 10))
	}
	if l.Depth > 0 {
		parts = append(parts, "depth", strconv.Itoa(l.Depth))
	}
	if l.Nodes > 0 {
		parts = append(parts, "nodes", strconv.FormatInt(l.Nodes, 10))
	}
	if l.MoveTime > 0 {
		parts = append(parts, "movetime", strconv.FormatInt(l.MoveTime, 10))
	}
	return strings.Join(parts, " ")
}

func (l Limits) budget(grace time.Duration) time.Duration {
	ms := l.BudgetMS
	if ms <= 0 {
		ms = l.MoveTime
	}
	if ms <= 0 {
		// depth/node limited search with no wall budget
		ms = 60_000
	}
	return time.Duration(ms)*time.Millisecond + grace
}

// Identity is what the engine reported about itself during the handshake.
type Identity struct {
	Name   string
	Author string
}

// MoveResult is the outcome of one search: the chosen move plus whatever
// telemetry the info lines carried.
type MoveResult struct {
	BestMove  string
	Ponder    string
	Telemetry Telemetry
	Elapsed   time.Duration
}

// Session owns one engine process and speaks UCI to it. It is not safe for
// concurrent use; a match controller interacts with its two sessions
// strictly alternately, so no locking is needed around the protocol itself.
type Session struct {
	name    string
	path    string
	options map[string]string
	cfg     Config
	log     *zap.Logger

	tr        Transport
	fixedTr   bool
	mu        sync.Mutex
	state     State
	id        Identity
	opts      map[string]OptionInfo
	lastAlive time.Time
}

// SessionOption customizes construction.
type SessionOption func(*Session)

// WithTransport injects a pre-built transport. Tests use it to script an
// engine without spawning a process; Start then skips the launch step.
func WithTransport(tr Transport) SessionOption {
	return func(s *Session) {
		s.tr = tr
		s.fixedTr = true
	}
}

func NewSession(name, path string, options map[string]string, cfg Config, sopts ...SessionOption) *Session {
	s := &Session{
		name:    name,
		path:    path,
		options: options,
		cfg:     cfg.withDefaults(),
		log:     obslog.L().With(zap.String("engine", name)),
		state:   StateNotStarted,
		opts:    map[string]OptionInfo{},
	}
	for _, o := range sopts {
		o(s)
	}
	return s
}

func (s *Session) Name() string { return s.name }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Identity reports the name/author lines collected during the handshake.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Options returns the option declarations harvested during the handshake.
func (s *Session) Options() map[string]OptionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]OptionInfo, len(s.opts))
	for k, v := range s.opts {
		out[k] = v
	}
	return out
}

// SupportsMateSearch reports whether any declared option mentions mate
// search, mirroring how engine capability probing worked historically.
func (s *Session) SupportsMateSearch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.opts {
		if strings.Contains(strings.ToLower(name), "mate") {
			return true
		}
	}
	return false
}

// LastAlive is the time of the most recent line received from the engine.
func (s *Session) LastAlive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAlive
}

// Start launches the engine process. It does not perform the handshake.
func (s *Session) Start() error {
	if s.State() != StateNotStarted {
		return fmt.Errorf("%w: session already started", ErrLaunch)
	}
	s.setState(StateLaunching)
	if !s.fixedTr {
		tr, err := launchProcess(s.path, s.cfg.QuitTimeout)
		if err != nil {
			s.setState(StateFaulted)
			return err
		}
		s.tr = tr
	}
	s.setState(StateAwaitingHandshake)
	s.log.Info("engine_start", zap.String("path", s.path))
	return nil
}

// Handshake sends "uci", collects identity/option lines until uciok, then
// applies launch options and confirms readiness. Unknown or malformed lines
// are logged and skipped; real engines emit all kinds of noise here and
// that must never be fatal.
func (s *Session) Handshake(ctx context.Context) error {
	if st := s.State(); st != StateAwaitingHandshake {
		return fmt.Errorf("%w: handshake in state %s", ErrHandshakeFailed, st)
	}
	if err := s.tr.Send("uci"); err != nil {
		s.setState(StateFaulted)
		return fmt.Errorf("%w: send uci: %v", ErrHandshakeFailed, err)
	}

	hsCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	for {
		line, err := s.tr.ReadLine(hsCtx)
		if err != nil {
			s.setState(StateFaulted)
			if errors.Is(err, errPeerClosed) {
				return fmt.Errorf("%w: process exited before uciok", ErrHandshakeFailed)
			}
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w after %s", ErrHandshakeTimeout, s.cfg.HandshakeTimeout)
			}
			return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		s.touch()

		if strings.Contains(line, "uciok") {
			break
		}
		if field, value, ok := parseID(line); ok {
			s.mu.Lock()
			if field == "name" {
				s.id.Name = value
			} else {
				s.id.Author = value
			}
			s.mu.Unlock()
			continue
		}
		if opt, ok := parseOption(line); ok {
			s.mu.Lock()
			s.opts[opt.Name] = opt
			s.mu.Unlock()
			continue
		}
		s.log.Debug("handshake_line_ignored", zap.String("line", line))
	}

	if err := s.applyOptions(); err != nil {
		s.setState(StateFaulted)
		return err
	}
	s.setState(StateIdle)
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}
	s.log.Info("engine_handshake_ok",
		zap.String("id_name", s.Identity().Name),
		zap.String("id_author", s.Identity().Author),
		zap.Int("options", len(s.Options())),
	)
	return nil
}

func (s *Session) applyOptions() error {
	keys := make([]string, 0, len(s.options))
	for k := range s.options {
		keys = append(keys, k)
	}
	sort.Strings(keys) // stable command order
	for _, k := range keys {
		cmd := fmt.Sprintf("setoption name %s value %s", k, s.options[k])
		if err := s.tr.Send(cmd); err != nil {
			return fmt.Errorf("%w: apply option %s: %v", ErrHandshakeFailed, k, err)
		}
	}
	return nil
}

// EnsureReady sends isready and waits for readyok. Used before reusing a
// session for another game to confirm the process survived the last one.
func (s *Session) EnsureReady(ctx context.Context) error {
	if st := s.State(); st == StateTerminated || st == StateFaulted || st == StateNotStarted {
		return fmt.Errorf("%w: not ready in state %s", ErrEngineCrash, st)
	}
	if err := s.tr.Send("isready"); err != nil {
		s.setState(StateFaulted)
		return fmt.Errorf("%w: send isready: %v", ErrEngineCrash, err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	for {
		line, err := s.tr.ReadLine(readyCtx)
		if err != nil {
			s.setState(StateFaulted)
			if errors.Is(err, errPeerClosed) {
				return fmt.Errorf("%w: exited during ready probe", ErrEngineCrash)
			}
			return fmt.Errorf("%w: no readyok within %s", ErrEngineCrash, s.cfg.ReadyTimeout)
		}
		s.touch()
		if strings.Contains(line, "readyok") {
			return nil
		}
		// anything else between isready and readyok is engine chatter
	}
}

// NewGame resets the engine for a fresh game and confirms readiness.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.tr.Send("ucinewgame"); err != nil {
		s.setState(StateFaulted)
		return fmt.Errorf("%w: send ucinewgame: %v", ErrEngineCrash, err)
	}
	return s.EnsureReady(ctx)
}

// SetPosition encodes a move list from the starting position. Fire and
// forget; the protocol defines no acknowledgment.
func (s *Session) SetPosition(moves []string) error {
	return s.SetPositionFEN("", moves)
}

// SetPositionFEN sets an arbitrary base position plus moves.
func (s *Session) SetPositionFEN(fen string, moves []string) error {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	if err := s.tr.Send(sb.String()); err != nil {
		s.setState(StateFaulted)
		return fmt.Errorf("%w: send position: %v", ErrEngineCrash, err)
	}
	return nil
}

// Go starts a search and blocks until the bestmove line, the budget plus
// grace elapses (ErrSearchTimeout), or the process dies (ErrEngineCrash).
// Info lines are parsed opportunistically into telemetry; malformed ones
// are ignored.
func (s *Session) Go(ctx context.Context, limits Limits) (MoveResult, error) {
	if st := s.State(); st != StateIdle {
		return MoveResult{}, fmt.Errorf("%w: go in state %s", ErrEngineCrash, st)
	}
	cmd := limits.goCommand()
	if err := s.tr.Send(cmd); err != nil {
		s.setState(StateFaulted)
		return MoveResult{}, fmt.Errorf("%w: send go: %v", ErrEngineCrash, err)
	}
	s.setState(StateThinking)
	defer func() {
		if s.State() == StateThinking {
			s.setState(StateIdle)
		}
	}()

	searchCtx, cancel := context.WithTimeout(ctx, limits.budget(s.cfg.SearchGrace))
	defer cancel()

	start := time.Now()
	var tel Telemetry
	for {
		line, err := s.tr.ReadLine(searchCtx)
		if err != nil {
			if errors.Is(err, errPeerClosed) {
				s.setState(StateFaulted)
				return MoveResult{}, fmt.Errorf("%w during search", ErrEngineCrash)
			}
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				s.setState(StateFaulted)
				return MoveResult{}, fmt.Errorf("%w: no bestmove for %q", ErrSearchTimeout, cmd)
			}
			s.setState(StateFaulted)
			return MoveResult{}, fmt.Errorf("%w: read during search: %v", ErrEngineCrash, err)
		}
		s.touch()

		if strings.HasPrefix(line, "info") {
			parseInfo(line, &tel)
			continue
		}
		if best, ponder, ok := parseBestMove(line); ok {
			return MoveResult{
				BestMove:  best,
				Ponder:    ponder,
				Telemetry: tel,
				Elapsed:   time.Since(start),
			}, nil
		}
		// unrecognized line shapes are discarded, never a parse failure
		s.log.Debug("search_line_ignored", zap.String("line", line))
	}
}

// Stop asks the engine to cut the current search short. Best effort.
func (s *Session) Stop() {
	if st := s.State(); st == StateTerminated || st == StateNotStarted {
		return
	}
	s.setState(StateStopping)
	_ = s.tr.Send("stop")
	s.setState(StateIdle)
}

// Quit shuts the engine down: quit command, brief wait, then forced
// termination. Idempotent and callable from any state, Faulted included.
func (s *Session) Quit() {
	st := s.State()
	if st == StateTerminated || st == StateNotStarted {
		s.setState(StateTerminated)
		return
	}
	if s.tr != nil {
		_ = s.tr.Send("quit")
		_ = s.tr.Terminate()
	}
	s.setState(StateTerminated)
	s.log.Info("engine_quit")
}

// Alive reports whether the underlying process is still running.
func (s *Session) Alive() bool {
	if s.tr == nil {
		return false
	}
	return s.tr.Alive()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAlive = time.Now()
	s.mu.Unlock()
}
