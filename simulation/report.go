package simulation

import "github.com/luca-patrignani/trust-consensus/consensus"

type Verdict string

const (
	VerdictNoAttack  Verdict = "no attack"
	VerdictHighly    Verdict = "highly successful"
	VerdictPartially Verdict = "partially successful"
	VerdictFailed    Verdict = "not successful"
)

// CandidateWins is the number of rounds a candidate won.
type CandidateWins struct {
	Candidate consensus.Candidate
	Wins      int
	// Share is Wins over the rounds played, in [0, 1].
	Share float64
}

// Report summarizes the rounds played so far.
type Report struct {
	RunID           string
	Seed            uint64
	Rounds          int
	Wins            []CandidateWins
	AttackCandidate consensus.Candidate
	AttackerWins    int
	Verdict         Verdict
	// Resolutions counts the rounds decided by each winner selection step.
	Resolutions   map[consensus.Resolution]int
	AttackerTrust []consensus.NodeStatus
}

// Report builds the summary of the rounds played so far.
func (s *Simulator) Report() Report {
	r := Report{
		RunID:       s.runID,
		Seed:        s.cfg.Seed,
		Rounds:      len(s.outcomes),
		Resolutions: make(map[consensus.Resolution]int),
		Verdict:     VerdictNoAttack,
	}

	wins := make(map[consensus.Candidate]int, s.candidates.Len())
	for _, o := range s.outcomes {
		wins[o.Result.Winner]++
		r.Resolutions[o.Result.Resolution]++
	}
	for _, c := range s.candidates.Labels() {
		cw := CandidateWins{Candidate: c, Wins: wins[c]}
		if r.Rounds > 0 {
			cw.Share = float64(cw.Wins) / float64(r.Rounds)
		}
		r.Wins = append(r.Wins, cw)
	}

	if len(s.attackers) > 0 {
		r.AttackCandidate = consensus.Candidate(s.cfg.AttackCandidate)
		r.AttackerWins = wins[r.AttackCandidate]
		r.Verdict = verdict(r.AttackerWins, r.Rounds, s.candidates.Len())
		for _, id := range s.attackers {
			trust, _ := s.coord.TrustScore(id)
			r.AttackerTrust = append(r.AttackerTrust, consensus.NodeStatus{ID: id, TrustScore: trust})
		}
	}
	return r
}

func verdict(attackerWins, rounds, candidates int) Verdict {
	if rounds == 0 {
		return VerdictFailed
	}
	share := float64(attackerWins) / float64(rounds)
	switch {
	case share > 0.5:
		return VerdictHighly
	case share > 1/float64(candidates):
		return VerdictPartially
	default:
		return VerdictFailed
	}
}
