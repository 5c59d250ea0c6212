package uci

import "errors"

// Failure classes of an engine session. Callers classify with errors.Is;
// the concrete message wraps the sentinel with session context.
var (
	// ErrLaunch: the executable is missing or could not be started.
	ErrLaunch = errors.New("engine launch failed")

	// ErrHandshakeTimeout: the uciok token never arrived inside the
	// configured handshake window.
	ErrHandshakeTimeout = errors.New("uci handshake timed out")

	// ErrHandshakeFailed: the process exited before completing the
	// handshake.
	ErrHandshakeFailed = errors.New("uci handshake failed")

	// ErrSearchTimeout: no bestmove line arrived within the time budget
	// plus grace. Resolved by the caller as a timeout loss, not a crash.
	ErrSearchTimeout = errors.New("engine search timed out")

	// ErrEngineCrash: the process exited while a response was expected.
	ErrEngineCrash = errors.New("engine process exited unexpectedly")
)
