package uci

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeEngine writes a shell script acting as the engine process.
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script engines need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write engine script: %v", err)
	}
	return path
}

func TestProcTransportRoundTrip(t *testing.T) {
	path := fakeEngine(t, `while read line; do echo "got $line"; done`+"\n")
	tr, err := launchProcess(path, time.Second)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := tr.Send("ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tr.ReadLine(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "got ping" {
		t.Fatalf("line = %q, want %q", line, "got ping")
	}
	if err := tr.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
}

func TestTerminateKillsAfterQuitWait(t *testing.T) {
	// ignores stdin closing, so only the kill path can end it
	path := fakeEngine(t, "sleep 30\n")
	tr, err := launchProcess(path, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	start := time.Now()
	if err := tr.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("terminate took %v with a 100ms quit wait", elapsed)
	}
}

func TestTerminateWithUnreadOutput(t *testing.T) {
	// floods far more lines than the read buffer holds, then hangs
	path := fakeEngine(t, "i=0\nwhile [ $i -lt 500 ]; do echo \"line $i\"; i=$((i+1)); done\nsleep 30\n")
	tr, err := launchProcess(path, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	time.Sleep(200 * time.Millisecond) // let the flood fill the buffer

	done := make(chan error, 1)
	go func() { done <- tr.Terminate() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("terminate: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("terminate blocked on unread engine output")
	}

	deadline := time.Now().Add(2 * time.Second)
	for tr.Alive() {
		if time.Now().After(deadline) {
			t.Fatalf("transport still reports alive after terminate")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
