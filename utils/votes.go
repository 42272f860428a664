package utils

import "github.com/wfunc/spyserver/models"

// Tally is the outcome of counting a round of votes.
type Tally struct {
	Counts       map[string]int
	EliminatedID string
	Outcome      string
}

// CountVotes tallies votes (voterID -> targetID). A single target with strictly
// the most votes is eliminated unless that target is the abstain sentinel.
func CountVotes(votes map[string]string) Tally {
	counts := make(map[string]int, len(votes))
	for _, target := range votes {
		counts[target]++
	}

	if len(counts) == 0 {
		return Tally{Counts: counts, Outcome: models.OutcomeNoVotes}
	}

	max := 0
	leaders := make([]string, 0, 2)
	for target, n := range counts {
		switch {
		case n > max:
			max = n
			leaders = append(leaders[:0], target)
		case n == max:
			leaders = append(leaders, target)
		}
	}

	if len(leaders) > 1 {
		return Tally{Counts: counts, Outcome: models.OutcomeTie}
	}
	if leaders[0] == models.AbstainID {
		return Tally{Counts: counts, Outcome: models.OutcomeAbstain}
	}
	return Tally{Counts: counts, EliminatedID: leaders[0], Outcome: models.OutcomeEliminated}
}
