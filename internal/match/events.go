package match

import (
	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

// Event is a live per-move update emitted during play. Consumers that
// fall behind lose events rather than stalling the game.
type Event struct {
	GameID       string
	White        string
	Black        string
	MoveNumber   int
	Move         MoveInfo
	FEN          string
	ClockWhiteMS int64
	ClockBlackMS int64
}

func (c *Controller) emit(rec *Record, game *chesslib.Game, clk *clock, mv MoveInfo) {
	if c.events == nil {
		return
	}
	ev := Event{
		GameID:       rec.ID,
		White:        rec.White,
		Black:        rec.Black,
		MoveNumber:   len(rec.Moves),
		Move:         mv,
		FEN:          game.FEN(),
		ClockWhiteMS: clk.whiteMS,
		ClockBlackMS: clk.blackMS,
	}
	select {
	case c.events <- ev:
	default:
		c.log.Debug("event_dropped", zap.String("game_id", rec.ID))
	}
}
