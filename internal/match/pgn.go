package match

import (
	"fmt"
	"strings"
)

// PGN renders the sealed game in portable game notation. Book moves that
// carry no SAN fall back to their UCI form.
func (r *Record) PGN() string {
	var sb strings.Builder
	tag := func(k, v string) { fmt.Fprintf(&sb, "[%s %q]\n", k, v) }

	tag("Event", "Engine Match")
	tag("Date", r.StartedAt.Format("2006.01.02"))
	tag("White", r.White)
	tag("Black", r.Black)
	result := resultTag(r.Outcome)
	tag("Result", result)
	if r.Reason != "" {
		tag("Termination", string(r.Reason))
	}
	if r.Opening != "" {
		tag("Opening", r.Opening)
	}
	tag("TimeControl", r.TimeControl.String())
	sb.WriteByte('\n')

	for i, m := range r.Moves {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		}
		tok := m.SAN
		if tok == "" {
			tok = m.UCI
		}
		sb.WriteString(tok)
		sb.WriteByte(' ')
	}
	sb.WriteString(result)
	sb.WriteByte('\n')
	return sb.String()
}

func resultTag(o Outcome) string {
	switch o {
	case OutcomeWhiteWins:
		return "1-0"
	case OutcomeBlackWins:
		return "0-1"
	case OutcomeDraw:
		return "1/2-1/2"
	}
	return "*"
}
