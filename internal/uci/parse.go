package uci

import (
	"strconv"
	"strings"
)

// Telemetry holds whatever a search's info lines yielded. Every field is
// optional; engines that emit nothing, or garbage, still produce a usable
// zero value.
type Telemetry struct {
	Depth    int
	SelDepth int
	ScoreCP  int
	HasScore bool
	MateIn   int
	HasMate  bool
	Nodes    int64
	NPS      int64
	TimeMS   int64
	PV       []string
}

// OptionInfo is one "option name ..." line harvested during the handshake.
type OptionInfo struct {
	Name    string
	Type    string
	Default string
}

// parseInfo scans an info line field by field. Unknown tokens are skipped,
// numeric garbage is ignored; the line never fails as a whole. Engines
// deviate from the UCI text constantly and that must stay non-fatal.
func parseInfo(line string, tel *Telemetry) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return
	}
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if v, ok := atoiAt(parts, i+1); ok {
				tel.Depth = v
				i++
			}
		case "seldepth":
			if v, ok := atoiAt(parts, i+1); ok {
				tel.SelDepth = v
				i++
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						tel.ScoreCP = v
						tel.HasScore = true
					}
					i += 2
				case "mate":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						tel.MateIn = v
						tel.HasMate = true
					}
					i += 2
				}
			}
		case "nodes":
			if v, ok := atoi64At(parts, i+1); ok {
				tel.Nodes = v
				i++
			}
		case "nps":
			if v, ok := atoi64At(parts, i+1); ok {
				tel.NPS = v
				i++
			}
		case "time":
			if v, ok := atoi64At(parts, i+1); ok {
				tel.TimeMS = v
				i++
			}
		case "pv":
			if i+1 < len(parts) {
				tel.PV = append([]string(nil), parts[i+1:]...)
			}
			return
		}
	}
}

// parseBestMove extracts the move and optional ponder move from a bestmove
// line. ok is false when the line is not a bestmove line at all.
func parseBestMove(line string) (best, ponder string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "bestmove" {
		return "", "", false
	}
	if len(parts) >= 2 {
		best = parts[1]
	}
	if len(parts) >= 4 && parts[2] == "ponder" {
		ponder = parts[3]
	}
	return best, ponder, true
}

// parseID handles "id name ..." and "id author ..." handshake lines.
func parseID(line string) (field, value string, ok bool) {
	switch {
	case strings.HasPrefix(line, "id name "):
		return "name", strings.TrimSpace(line[len("id name"):]), true
	case strings.HasPrefix(line, "id author "):
		return "author", strings.TrimSpace(line[len("id author"):]), true
	}
	return "", "", false
}

// parseOption handles "option name X type Y default Z" lines. The name may
// contain spaces, so scanning stops at the type keyword.
func parseOption(line string) (OptionInfo, bool) {
	if !strings.HasPrefix(line, "option name ") {
		return OptionInfo{}, false
	}
	rest := strings.TrimSpace(line[len("option name"):])
	if rest == "" {
		return OptionInfo{}, false
	}

	opt := OptionInfo{}
	if idx := strings.Index(rest, " type "); idx >= 0 {
		opt.Name = strings.TrimSpace(rest[:idx])
		fields := strings.Fields(rest[idx+len(" type "):])
		if len(fields) > 0 {
			opt.Type = fields[0]
		}
		for i := 0; i < len(fields)-1; i++ {
			if fields[i] == "default" {
				opt.Default = fields[i+1]
				break
			}
		}
	} else {
		opt.Name = rest
	}
	if opt.Name == "" {
		return OptionInfo{}, false
	}
	return opt, true
}

func atoiAt(parts []string, i int) (int, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0, false
	}
	return v, true
}

func atoi64At(parts []string, i int) (int64, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.ParseInt(parts[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
