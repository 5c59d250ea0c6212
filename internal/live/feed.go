// Package live relays game activity to Redis so spectator tooling can
// follow a running tournament.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/match"
	"github.com/badyast/testchess/internal/obslog"
)

const (
	defaultChannel = "arena:moves"
	gameKeyPrefix  = "arena:game:"
	gameKeyTTL     = time.Hour
)

// movePayload is the published wire form of one move event.
type movePayload struct {
	GameID       string `json:"game_id"`
	White        string `json:"white"`
	Black        string `json:"black"`
	MoveNumber   int    `json:"move_number"`
	UCI          string `json:"uci"`
	SAN          string `json:"san,omitempty"`
	Book         bool   `json:"book,omitempty"`
	FEN          string `json:"fen"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	ClockWhiteMS int64  `json:"clock_white_ms"`
	ClockBlackMS int64  `json:"clock_black_ms"`
	Depth        int    `json:"depth,omitempty"`
	ScoreCP      int    `json:"score_cp,omitempty"`
	Nodes        int64  `json:"nodes,omitempty"`
}

// resultPayload is the published wire form of a sealed game.
type resultPayload struct {
	GameID  string `json:"game_id"`
	White   string `json:"white"`
	Black   string `json:"black"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
	Moves   int    `json:"moves"`
	PGN     string `json:"pgn"`
}

// Feed consumes match events and publishes them. Publishing is fire and
// forget: a slow or absent subscriber never stalls a game.
type Feed struct {
	rdb     *redis.Client
	channel string
	ch      chan match.Event
	done    chan struct{}
	stopped chan struct{}
	log     *zap.Logger
}

// NewFeed connects to Redis and starts the relay goroutine. buffer is
// the event backlog held before events start dropping at the source.
func NewFeed(redisURL, channel string, buffer int) (*Feed, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required for live feed")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if channel == "" {
		channel = defaultChannel
	}
	if buffer <= 0 {
		buffer = 256
	}
	f := &Feed{
		rdb:     rdb,
		channel: channel,
		ch:      make(chan match.Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		log:     obslog.L(),
	}
	go f.loop()
	return f, nil
}

// Events is the channel to hand to game controllers.
func (f *Feed) Events() chan match.Event { return f.ch }

func (f *Feed) loop() {
	defer close(f.stopped)
	for {
		select {
		case ev := <-f.ch:
			f.publishMove(ev)
		case <-f.done:
			// drain whatever is already buffered
			for {
				select {
				case ev := <-f.ch:
					f.publishMove(ev)
				default:
					return
				}
			}
		}
	}
}

func (f *Feed) publishMove(ev match.Event) {
	payload := movePayload{
		GameID:       ev.GameID,
		White:        ev.White,
		Black:        ev.Black,
		MoveNumber:   ev.MoveNumber,
		UCI:          ev.Move.UCI,
		SAN:          ev.Move.SAN,
		Book:         ev.Move.Book,
		FEN:          ev.FEN,
		ElapsedMS:    ev.Move.ElapsedMS,
		ClockWhiteMS: ev.ClockWhiteMS,
		ClockBlackMS: ev.ClockBlackMS,
		Depth:        ev.Move.Telemetry.Depth,
		ScoreCP:      ev.Move.Telemetry.ScoreCP,
		Nodes:        ev.Move.Telemetry.Nodes,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := f.rdb.Pipeline()
	pipe.Publish(ctx, f.channel, raw)
	pipe.Set(ctx, gameKeyPrefix+ev.GameID, raw, gameKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		f.log.Debug("live_publish_error", zap.Error(err))
	}
}

// PublishResult pushes a sealed record to subscribers and stores it under
// the game key.
func (f *Feed) PublishResult(ctx context.Context, rec *match.Record) error {
	raw, err := json.Marshal(resultPayload{
		GameID:  rec.ID,
		White:   rec.White,
		Black:   rec.Black,
		Outcome: string(rec.Outcome),
		Reason:  string(rec.Reason),
		Moves:   len(rec.Moves),
		PGN:     rec.PGN(),
	})
	if err != nil {
		return err
	}
	pipe := f.rdb.Pipeline()
	pipe.Publish(ctx, f.channel, raw)
	pipe.Set(ctx, gameKeyPrefix+rec.ID, raw, gameKeyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Close flushes buffered events and releases the Redis connection.
func (f *Feed) Close() {
	close(f.done)
	<-f.stopped
	_ = f.rdb.Close()
}
