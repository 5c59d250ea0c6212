package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig carries the operator-tunable knobs of the arena. Defaults are
// deliberately conservative; every timing threshold can be overridden from
// the environment so nothing match-critical is baked in.
type AppConfig struct {
	RegistryPath string

	HandshakeTimeout time.Duration
	ReadyTimeout     time.Duration
	QuitTimeout      time.Duration

	// SearchGrace is added on top of a move's time budget before the
	// session gives up waiting for the bestmove line.
	SearchGrace time.Duration

	// MaxMoves is the half-move cap after which an undecided game is
	// adjudicated as a draw.
	MaxMoves int

	GameConcurrency int

	BookPath      string
	OpeningMaxPly int
	OpeningSeed   int64

	RedisURL    string
	EventBuffer int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RegistryPath:     "config/engines.yaml",
		HandshakeTimeout: 10 * time.Second,
		ReadyTimeout:     5 * time.Second,
		QuitTimeout:      3 * time.Second,
		SearchGrace:      2 * time.Second,
		MaxMoves:         400,
		GameConcurrency:  1,
		OpeningMaxPly:    8,
		EventBuffer:      256,
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_ENGINES_FILE")); v != "" {
		cfg.RegistryPath = v
	}
	if d, ok := envDuration("ARENA_HANDSHAKE_TIMEOUT"); ok {
		cfg.HandshakeTimeout = d
	}
	if d, ok := envDuration("ARENA_READY_TIMEOUT"); ok {
		cfg.ReadyTimeout = d
	}
	if d, ok := envDuration("ARENA_QUIT_TIMEOUT"); ok {
		cfg.QuitTimeout = d
	}
	if d, ok := envDuration("ARENA_SEARCH_GRACE"); ok {
		cfg.SearchGrace = d
	}
	if n, ok := envInt("ARENA_MAX_MOVES"); ok && n > 0 {
		cfg.MaxMoves = n
	}
	if n, ok := envInt("ARENA_GAME_CONCURRENCY"); ok && n > 0 {
		cfg.GameConcurrency = n
	}
	cfg.BookPath = strings.TrimSpace(os.Getenv("ARENA_BOOK_PATH"))
	if n, ok := envInt("ARENA_OPENING_MAX_PLY"); ok && n > 0 {
		cfg.OpeningMaxPly = n
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_OPENING_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.OpeningSeed = n
		}
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if n, ok := envInt("ARENA_EVENT_BUFFER"); ok && n > 0 {
		cfg.EventBuffer = n
	}

	return cfg, nil
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envDuration accepts either a Go duration string ("4s") or a bare
// millisecond count, which is what most UCI tooling configs use.
func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond, true
	}
	return 0, false
}
