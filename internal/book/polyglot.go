// Package book reads Polyglot opening books and serves weighted opening
// lines for tournament play.
package book

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/badyast/testchess/internal/obslog"
)

// entrySize is the fixed Polyglot record width: uint64 key, uint16 move,
// uint16 weight, uint32 learn, all big-endian.
const entrySize = 16

// ErrCorruptBook reports a .bin file whose size is not a whole number of
// records.
var ErrCorruptBook = errors.New("corrupt polyglot book")

// Entry is one decoded Polyglot record.
type Entry struct {
	Key    uint64
	Move   uint16
	Weight uint16
	Learn  uint32
}

// MoveUCI unpacks the Polyglot move field into UCI coordinates. Castling
// moves keep the book's king-takes-rook convention; see castleRemap.
func (e Entry) MoveUCI() string {
	toFile := e.Move & 0x7
	toRank := (e.Move >> 3) & 0x7
	fromFile := (e.Move >> 6) & 0x7
	fromRank := (e.Move >> 9) & 0x7
	promo := (e.Move >> 12) & 0x7

	buf := []byte{
		byte('a' + fromFile), byte('1' + fromRank),
		byte('a' + toFile), byte('1' + toRank),
	}
	switch promo {
	case 1:
		buf = append(buf, 'n')
	case 2:
		buf = append(buf, 'b')
	case 3:
		buf = append(buf, 'r')
	case 4:
		buf = append(buf, 'q')
	}
	return string(buf)
}

// castleRemap converts the Polyglot castling convention (king moves onto
// its own rook) to the standard UCI king destination.
func castleRemap(uci string) (string, bool) {
	switch uci {
	case "e1h1":
		return "e1g1", true
	case "e1a1":
		return "e1c1", true
	case "e8h8":
		return "e8g8", true
	case "e8a8":
		return "e8c8", true
	}
	return "", false
}

// Book holds the decoded entries of a Polyglot book, sorted by key.
type Book struct {
	entries []Entry
}

// Load reads and parses a .bin book from disk.
func Load(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	b, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	obslog.L().Info("book_loaded",
		zap.String("path", path),
		zap.Int("entries", b.Len()),
	)
	return b, nil
}

// Parse decodes raw book bytes. A length that is not a multiple of the
// record size fails with ErrCorruptBook.
func Parse(raw []byte) (*Book, error) {
	if len(raw)%entrySize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrCorruptBook, len(raw), entrySize)
	}
	entries := make([]Entry, 0, len(raw)/entrySize)
	for off := 0; off < len(raw); off += entrySize {
		rec := raw[off : off+entrySize]
		entries = append(entries, Entry{
			Key:    binary.BigEndian.Uint64(rec[0:8]),
			Move:   binary.BigEndian.Uint16(rec[8:10]),
			Weight: binary.BigEndian.Uint16(rec[10:12]),
			Learn:  binary.BigEndian.Uint32(rec[12:16]),
		})
	}
	// books are conventionally pre-sorted, but don't trust the file
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return &Book{entries: entries}, nil
}

// Len reports the number of entries.
func (b *Book) Len() int { return len(b.entries) }

// Find returns all entries for a position key, in file order. The result
// is empty when the position is out of book.
func (b *Book) Find(key uint64) []Entry {
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].Key >= key })
	var out []Entry
	for ; i < len(b.entries) && b.entries[i].Key == key; i++ {
		out = append(out, b.entries[i])
	}
	return out
}

// Pick draws one entry for the key, weighted by entry weight. Zero-weight
// entries never win. Returns false when the key has no playable entries.
func (b *Book) Pick(key uint64, rng *rand.Rand) (Entry, bool) {
	candidates := b.Find(key)
	var total int64
	for _, e := range candidates {
		total += int64(e.Weight)
	}
	if total == 0 {
		return Entry{}, false
	}
	r := rng.Int63n(total)
	var cum int64
	for _, e := range candidates {
		cum += int64(e.Weight)
		if r < cum {
			return e, true
		}
	}
	return Entry{}, false
}

// PositionKey computes the Polyglot hash of a FEN position.
func PositionKey(fen string) (uint64, error) {
	hashStr, err := chesslib.NewZobristHasher().HashPosition(fen)
	if err != nil {
		return 0, fmt.Errorf("hash position: %w", err)
	}
	return chesslib.ZobristHashToUint64(hashStr), nil
}

// Line walks the book from the starting position, drawing a weighted move
// at each ply until the book runs out or maxPly is reached. Every move is
// legality-checked before it is kept.
func (b *Book) Line(maxPly int, rng *rand.Rand) ([]string, error) {
	game := chesslib.NewGame()
	var moves []string
	for len(moves) < maxPly {
		key, err := PositionKey(game.FEN())
		if err != nil {
			return moves, err
		}
		entry, ok := b.Pick(key, rng)
		if !ok {
			break
		}
		uci := playBookMove(game, entry)
		if uci == "" {
			break
		}
		moves = append(moves, uci)
	}
	return moves, nil
}

// playBookMove applies an entry to the game, preferring the remapped
// castling form when it is legal. Returns the move actually played, or
// "" when neither form is legal in the position.
func playBookMove(game *chesslib.Game, e Entry) string {
	uci := e.MoveUCI()
	if remapped, ok := castleRemap(uci); ok {
		if game.PushNotationMove(remapped, chesslib.UCINotation{}, nil) == nil {
			return remapped
		}
	}
	if game.PushNotationMove(uci, chesslib.UCINotation{}, nil) == nil {
		return uci
	}
	return ""
}
