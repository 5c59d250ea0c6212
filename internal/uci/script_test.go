package uci

import (
	"context"
	"strings"
	"sync"
	"time"
)

// scriptRule maps a command prefix to the lines the fake engine emits in
// response, optionally after a delay.
type scriptRule struct {
	prefix string
	delay  time.Duration
	lines  []string
	die    bool
}

// scriptTransport is a scripted engine standing in for a child process.
// It satisfies Transport, so sessions run against it unchanged.
type scriptTransport struct {
	mu    sync.Mutex
	rules []scriptRule
	out   chan string
	done  chan struct{}
	dead  bool
	sent  []string
}

func newScriptTransport(rules ...scriptRule) *scriptTransport {
	return &scriptTransport{
		rules: rules,
		out:   make(chan string, 128),
		done:  make(chan struct{}),
	}
}

func (t *scriptTransport) Send(line string) error {
	line = strings.TrimSpace(line)
	t.mu.Lock()
	t.sent = append(t.sent, line)
	dead := t.dead
	t.mu.Unlock()
	if dead {
		return errPeerClosed
	}
	for _, r := range t.rules {
		if !strings.HasPrefix(line, r.prefix) {
			continue
		}
		rule := r
		go func() {
			if rule.delay > 0 {
				time.Sleep(rule.delay)
			}
			if rule.die {
				t.kill()
				return
			}
			for _, l := range rule.lines {
				select {
				case t.out <- l:
				case <-t.done:
					return
				}
			}
		}()
		return nil
	}
	return nil
}

func (t *scriptTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-t.out:
		return line, nil
	default:
	}
	select {
	case line := <-t.out:
		return line, nil
	case <-t.done:
		select {
		case line := <-t.out:
			return line, nil
		default:
			return "", errPeerClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *scriptTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.dead
}

func (t *scriptTransport) Terminate() error {
	t.kill()
	return nil
}

func (t *scriptTransport) kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return
	}
	t.dead = true
	close(t.done)
}

func (t *scriptTransport) sentCommands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

// wellBehavedRules is the script of a conforming engine.
func wellBehavedRules() []scriptRule {
	return []scriptRule{
		{prefix: "ucinewgame"}, // no reply, ahead of the bare "uci" prefix
		{prefix: "uci", lines: []string{
			"id name Scripted 1.0",
			"id author Test Suite",
			"option name Hash type spin default 16 min 1 max 1024",
			"option name Threads type spin default 1 min 1 max 64",
			"option name UCI_ShowWDL type check default false",
			"uciok",
		}},
		{prefix: "isready", lines: []string{"readyok"}},
		{prefix: "go", lines: []string{
			"info depth 8 seldepth 12 score cp 31 nodes 4821 nps 120525 time 40 pv e2e4 e7e5",
			"bestmove e2e4 ponder e7e5",
		}},
		{prefix: "stop", lines: []string{"bestmove e2e4"}},
	}
}

func newScriptedSession(name string, rules ...scriptRule) (*Session, *scriptTransport) {
	tr := newScriptTransport(rules...)
	s := NewSession(name, "/fake/"+name, nil, Config{
		HandshakeTimeout: time.Second,
		ReadyTimeout:     time.Second,
		SearchGrace:      200 * time.Millisecond,
	}, WithTransport(tr))
	return s, tr
}
