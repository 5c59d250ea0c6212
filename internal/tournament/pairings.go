// Package tournament schedules and runs multi-engine competitions and
// keeps the standings.
package tournament

// Game is one scheduled pairing. Numbers are 1-based and sequential in
// schedule order; Round is 1-based.
type Game struct {
	Number int
	Round  int
	White  string
	Black  string
}

// RoundRobin schedules every unordered pair twice per round, once with
// each color assignment. With n engines and r rounds the schedule has
// r*n*(n-1) games. The schedule is deterministic in the input order.
func RoundRobin(engines []string, rounds int) []Game {
	var schedule []Game
	num := 0
	for round := 1; round <= rounds; round++ {
		for i := 0; i < len(engines); i++ {
			for j := i + 1; j < len(engines); j++ {
				num++
				schedule = append(schedule, Game{Number: num, Round: round, White: engines[i], Black: engines[j]})
				num++
				schedule = append(schedule, Game{Number: num, Round: round, White: engines[j], Black: engines[i]})
			}
		}
	}
	return schedule
}

// Gauntlet schedules the challenger against every opponent once per
// round, alternating the challenger's color between rounds: white in
// round 1, black in round 2, and so on. With m opponents and r rounds
// the schedule has r*m games.
func Gauntlet(challenger string, opponents []string, rounds int) []Game {
	var schedule []Game
	num := 0
	for round := 1; round <= rounds; round++ {
		for _, opp := range opponents {
			num++
			g := Game{Number: num, Round: round, White: challenger, Black: opp}
			if round%2 == 0 {
				g.White, g.Black = opp, challenger
			}
			schedule = append(schedule, g)
		}
	}
	return schedule
}
