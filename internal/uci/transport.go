package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Transport is the capability a session needs from an engine: send one
// command line, receive one response line under a deadline, and tear the
// peer down. Production uses a child process; tests substitute a script.
type Transport interface {
	Send(line string) error
	// ReadLine blocks until a line is available, the context expires, or
	// the peer is gone. Lines are returned without the trailing newline.
	ReadLine(ctx context.Context) (string, error)
	Alive() bool
	Terminate() error
}

// errPeerClosed reports that the output stream ended, i.e. the process
// exited or closed stdout.
var errPeerClosed = errors.New("engine output stream closed")

type procTransport struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	quitWait time.Duration

	lines chan string
	done  chan struct{}
	term  chan struct{}

	mu     sync.Mutex
	exited bool

	termOnce sync.Once
	termErr  error
}

// launchProcess starts the engine executable with piped text streams and a
// single long-lived reader goroutine feeding the line channel. One reader
// per process avoids racing partial reads when a deadline fires mid-line.
// quitWait bounds how long Terminate waits for a voluntary exit before
// killing the process.
func launchProcess(path string, quitWait time.Duration) (*procTransport, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty executable path", ErrLaunch)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdin pipe: %v", ErrLaunch, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: create stdout pipe: %v", ErrLaunch, err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	if quitWait <= 0 {
		quitWait = 2 * time.Second
	}
	t := &procTransport{
		cmd:      cmd,
		stdin:    stdin,
		quitWait: quitWait,
		lines:    make(chan string, 64),
		done:     make(chan struct{}),
		term:     make(chan struct{}),
	}
	go t.readLoop(stdoutPipe)
	return t, nil
}

func (t *procTransport) readLoop(r io.Reader) {
	defer close(t.done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case t.lines <- line:
		case <-t.term:
			// terminated with no reader left; keep draining to EOF so the
			// loop can finish instead of blocking on a full channel
		}
	}
	t.mu.Lock()
	t.exited = true
	t.mu.Unlock()
}

func (t *procTransport) Send(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := io.WriteString(t.stdin, line)
	return err
}

func (t *procTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-t.lines:
		return line, nil
	default:
	}
	select {
	case line := <-t.lines:
		return line, nil
	case <-t.done:
		// drain lines buffered before EOF
		select {
		case line := <-t.lines:
			return line, nil
		default:
			return "", errPeerClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *procTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.exited
}

// Terminate closes stdin and kills the process if it does not exit on its
// own shortly after. Safe to call more than once.
func (t *procTransport) Terminate() error {
	t.termOnce.Do(func() {
		close(t.term)
		_ = t.stdin.Close()

		waited := make(chan error, 1)
		go func() { waited <- t.cmd.Wait() }()

		select {
		case err := <-waited:
			t.termErr = ignoreExitError(err)
		case <-time.After(t.quitWait):
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
			t.termErr = ignoreExitError(<-waited)
		}
	})
	return t.termErr
}

func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
