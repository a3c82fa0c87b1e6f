package consensus

import "fmt"

// Candidate is an opaque label from the fixed candidate set.
type Candidate string

// CandidateSet is the closed, ordered enumeration of candidates a simulation
// votes on. Declaration order is significant: scores are accumulated and ties
// are resolved in this order.
type CandidateSet struct {
	labels []Candidate
	index  map[Candidate]int
}

// NewCandidateSet builds a candidate set preserving the given order.
// It fails on an empty list or on duplicate labels.
func NewCandidateSet(labels ...Candidate) (CandidateSet, error) {
	if len(labels) == 0 {
		return CandidateSet{}, ErrEmptyCandidates
	}
	set := CandidateSet{
		labels: make([]Candidate, 0, len(labels)),
		index:  make(map[Candidate]int, len(labels)),
	}
	for _, c := range labels {
		if _, dup := set.index[c]; dup {
			return CandidateSet{}, fmt.Errorf("%w: %q", ErrDuplicateCandidate, c)
		}
		set.index[c] = len(set.labels)
		set.labels = append(set.labels, c)
	}
	return set, nil
}

// Len returns the number of candidates.
func (s CandidateSet) Len() int { return len(s.labels) }

// At returns the i-th declared candidate.
func (s CandidateSet) At(i int) Candidate { return s.labels[i] }

// IndexOf returns the declaration index of c, or -1 if c is not in the set.
func (s CandidateSet) IndexOf(c Candidate) int {
	i, ok := s.index[c]
	if !ok {
		return -1
	}
	return i
}

// Contains reports whether c belongs to the set.
func (s CandidateSet) Contains(c Candidate) bool {
	_, ok := s.index[c]
	return ok
}

// Labels returns a copy of the candidates in declaration order.
func (s CandidateSet) Labels() []Candidate {
	out := make([]Candidate, len(s.labels))
	copy(out, s.labels)
	return out
}

// VoteAssignment maps every registered node id to the candidate it voted for
// in one round.
type VoteAssignment map[int]Candidate

// ChainTally counts valid votes per candidate, indexed like the CandidateSet.
type ChainTally []int

// Total returns the number of counted votes.
func (t ChainTally) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// WeightedTally holds the trust-weighted score per candidate, indexed like
// the CandidateSet.
type WeightedTally []float64

// Max returns the highest score in the tally.
func (t WeightedTally) Max() float64 {
	best := t[0]
	for _, v := range t[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// Resolution tells which step of the winner selection produced the winner.
type Resolution int

const (
	ResolvedByScore        Resolution = iota // unique maximum weighted score
	ResolvedByTrustSum                       // tie-break stage 1
	ResolvedByPerfectTrust                   // tie-break stage 2
	ResolvedByHighestVoter                   // tie-break stage 3
	ResolvedByFallback                       // tie-break stage 4
)

var resolutionNames = [...]string{"score", "trust-sum", "perfect-trust", "highest-voter", "fallback"}

func (r Resolution) String() string {
	if r < 0 || int(r) >= len(resolutionNames) {
		return fmt.Sprintf("resolution(%d)", int(r))
	}
	return resolutionNames[r]
}

// RoundResult is the committed outcome of one round.
type RoundResult struct {
	Round      int
	Winner     Candidate
	Resolution Resolution
	// Scores are the weighted scores in candidate declaration order.
	Scores []CandidateScore
	// Tied lists the candidates sharing the maximum score, empty without a tie.
	Tied []Candidate
	// Excluded is the number of votes dropped because their voter was malicious.
	Excluded int
	// Trust holds every node's trust score after the commit, in registry order.
	Trust []float64
}

// CandidateScore pairs a candidate with its weighted score.
type CandidateScore struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// NodeStatus is a read-only view of a node.
type NodeStatus struct {
	ID         int
	TrustScore float64
}

// ChainStatus lists the members of one lower chain.
type ChainStatus struct {
	ID    int
	Nodes []NodeStatus
}
