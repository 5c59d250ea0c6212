package tournament

import (
	"context"
	"fmt"
	"sync"

	"github.com/badyast/testchess/internal/match"
	"github.com/badyast/testchess/internal/registry"
	"github.com/badyast/testchess/internal/uci"
)

// exclusionSet tracks engines thrown out of the tournament.
type exclusionSet struct {
	mu  sync.Mutex
	out map[string]bool
}

func newExclusionSet() *exclusionSet {
	return &exclusionSet{out: make(map[string]bool)}
}

func (s *exclusionSet) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out[name]
}

// add marks the engine excluded; returns false when it already was.
func (s *exclusionSet) add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out[name] {
		return false
	}
	s.out[name] = true
	return true
}

// SessionFactory launches a fresh UCI session per game slot. Safe for
// concurrent games because no process is ever shared.
type SessionFactory struct {
	Registry *registry.Registry
	Session  uci.Config
}

func (f *SessionFactory) New(ctx context.Context, name string) (match.Engine, func(), error) {
	eng, ok := f.Registry.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("engine %q not in registry", name)
	}
	s := uci.NewSession(eng.Name, eng.Path, eng.Options, f.Session)
	if err := s.Start(); err != nil {
		return nil, nil, err
	}
	if err := s.Handshake(ctx); err != nil {
		s.Quit()
		return nil, nil, err
	}
	return s, s.Quit, nil
}

// CachedSessionFactory keeps one live session per engine and hands it out
// repeatedly. Only sound when games run one at a time; the tournament
// runner pairs it with Concurrency 1.
type CachedSessionFactory struct {
	Inner *SessionFactory

	mu       sync.Mutex
	sessions map[string]*uci.Session
}

func (f *CachedSessionFactory) New(ctx context.Context, name string) (match.Engine, func(), error) {
	f.mu.Lock()
	if f.sessions == nil {
		f.sessions = make(map[string]*uci.Session)
	}
	s, ok := f.sessions[name]
	f.mu.Unlock()

	if ok {
		if s.Alive() {
			if err := s.EnsureReady(ctx); err == nil {
				return s, func() {}, nil
			}
		}
		// dead or unresponsive between games: retire and relaunch
		s.Quit()
	}

	eng, release, err := f.Inner.New(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	_ = release // the cache owns the session lifetime now
	f.mu.Lock()
	f.sessions[name] = eng.(*uci.Session)
	f.mu.Unlock()
	return eng, func() {}, nil
}

// Close quits every cached session.
func (f *CachedSessionFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		s.Quit()
	}
	f.sessions = nil
}
