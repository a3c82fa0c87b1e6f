// Package adversary provides the vote strategies of coordinated attacker
// nodes. Every attacker casts the same vote in a round; the strategy decides
// which candidate that is from the round number and the honest votes.
package adversary

import (
	"errors"
	"fmt"
	"slices"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/luca-patrignani/trust-consensus/consensus"
)

var ErrUnknownStrategy = errors.New("unknown adversary strategy")

// Phase is the attackers' posture in a round.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseAttack
	PhaseRecover
)

func (p Phase) String() string {
	switch p {
	case PhaseAttack:
		return "Attack"
	case PhaseRecover:
		return "Recover"
	default:
		return "None"
	}
}

// Picker draws a random candidate. *ballot.Generator satisfies it.
type Picker interface {
	Pick(set consensus.CandidateSet) consensus.Candidate
}

type Strategy interface {
	Name() string
	Phase(round int) Phase
	// Vote returns the candidate every attacker votes for in the round.
	// honest holds the votes of the non-attacker nodes.
	Vote(round int, honest consensus.VoteAssignment) consensus.Candidate
}

// Flood always votes for the target candidate.
type Flood struct {
	Target consensus.Candidate
}

func (f Flood) Name() string { return "flood" }

func (f Flood) Phase(int) Phase { return PhaseAttack }

func (f Flood) Vote(int, consensus.VoteAssignment) consensus.Candidate { return f.Target }

// Mimic votes for the honest plurality to earn trust back.
type Mimic struct {
	Candidates consensus.CandidateSet
	Picker     Picker
}

func (m Mimic) Name() string { return "mimic" }

func (m Mimic) Phase(int) Phase { return PhaseRecover }

func (m Mimic) Vote(_ int, honest consensus.VoteAssignment) consensus.Candidate {
	if c, ok := Plurality(honest); ok {
		return c
	}
	return m.Picker.Pick(m.Candidates)
}

// Pulsing floods on odd rounds and mimics the honest plurality on even ones.
type Pulsing struct {
	Flood Flood
	Mimic Mimic
}

func (p Pulsing) Name() string { return "pulsing" }

func (p Pulsing) Phase(round int) Phase {
	if round%2 != 0 {
		return PhaseAttack
	}
	return PhaseRecover
}

func (p Pulsing) Vote(round int, honest consensus.VoteAssignment) consensus.Candidate {
	if p.Phase(round) == PhaseAttack {
		return p.Flood.Vote(round, honest)
	}
	return p.Mimic.Vote(round, honest)
}

// None is the strategy of a run without attackers. It must not be asked for
// a vote.
type None struct{}

func (None) Name() string { return "none" }

func (None) Phase(int) Phase { return PhaseNone }

func (None) Vote(int, consensus.VoteAssignment) consensus.Candidate { return "" }

// New builds a strategy by name.
func New(name string, target consensus.Candidate, candidates consensus.CandidateSet, picker Picker) (Strategy, error) {
	flood := Flood{Target: target}
	mimic := Mimic{Candidates: candidates, Picker: picker}
	switch name {
	case "flood":
		return flood, nil
	case "mimic":
		return mimic, nil
	case "pulsing":
		return Pulsing{Flood: flood, Mimic: mimic}, nil
	case "none", "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Plurality returns the most voted candidate. Ties go to the candidate whose
// first vote comes from the lowest node id. It reports false when there are
// no votes.
func Plurality(votes consensus.VoteAssignment) (consensus.Candidate, bool) {
	if len(votes) == 0 {
		return "", false
	}
	ids := make([]int, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	counts := orderedmap.NewOrderedMap[consensus.Candidate, int]()
	for _, id := range ids {
		c := votes[id]
		n, _ := counts.Get(c)
		counts.Set(c, n+1)
	}

	var best consensus.Candidate
	bestCount := 0
	for el := counts.Front(); el != nil; el = el.Next() {
		if el.Value > bestCount {
			best, bestCount = el.Key, el.Value
		}
	}
	return best, true
}
