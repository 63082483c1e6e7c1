// internal/competition/selector.go
package competition

import (
	"github.com/matijamicunovic629/cowprotocol/internal/domain"
)

// Candidate couples a validated solution with the solver that produced
// it. SolverIndex is the solver's registration order.
type Candidate struct {
	SolverIndex int
	Solver      string
	Solution    domain.Solution
}

// SelectWinner picks exactly one winner from the candidate pool, or
// none when the pool is empty. Solutions are already validated; only
// scores are compared here.
//
// The order is total: highest score wins, ties go to the earliest
// registered solver and then to the lowest solution id. Repeated
// selection over the same pool always yields the same winner, in any
// pool order, which keeps the outcome auditable.
func SelectWinner(pool []Candidate) (Candidate, bool) {
	if len(pool) == 0 {
		return Candidate{}, false
	}

	winner := pool[0]
	for _, candidate := range pool[1:] {
		if beats(candidate, winner) {
			winner = candidate
		}
	}
	return winner, true
}

func beats(a, b Candidate) bool {
	switch a.Solution.Score.Cmp(b.Solution.Score) {
	case 1:
		return true
	case -1:
		return false
	}
	if a.SolverIndex != b.SolverIndex {
		return a.SolverIndex < b.SolverIndex
	}
	return a.Solution.ID < b.Solution.ID
}
