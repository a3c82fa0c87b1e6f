package consensus

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Coordinator is the upper chain. It owns the node registry and the lower
// chains and runs rounds end to end: chain tallies, trust-weighted
// aggregation, winner resolution and the trust update commit.
type Coordinator struct {
	mu sync.RWMutex

	nodes      []*Node
	chains     []*LowerChain
	candidates CandidateSet

	maliciousThreshold float64
	trustDelta         float64
	parallelTally      bool

	observers []RoundObserver
	logger    *slog.Logger

	rounds int
}

// NewCoordinator builds the registry from a chain partition. The partition
// must list the node ids 0..N-1 contiguously and disjointly, chain after
// chain; a chain may be empty. Every node starts at InitialTrustScore.
func NewCoordinator(partition [][]int, candidates CandidateSet, opts ...coordinatorOption) (*Coordinator, error) {
	if candidates.Len() == 0 {
		return nil, ErrEmptyCandidates
	}
	if len(partition) == 0 {
		return nil, fmt.Errorf("%w: no chains", ErrInvalidPartition)
	}
	c := &Coordinator{
		candidates:         candidates,
		maliciousThreshold: DefaultMaliciousThreshold,
		trustDelta:         DefaultTrustDelta,
		logger:             discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.checkParams(); err != nil {
		return nil, err
	}

	next := 0
	for chainID, ids := range partition {
		chain := &LowerChain{id: chainID, members: make([]*Node, 0, len(ids))}
		for _, id := range ids {
			if id != next {
				return nil, fmt.Errorf("%w: chain %d lists node %d, expected %d", ErrInvalidPartition, chainID, id, next)
			}
			node := newNode(id)
			c.nodes = append(c.nodes, node)
			chain.members = append(chain.members, node)
			next++
		}
		c.chains = append(c.chains, chain)
	}
	return c, nil
}

func (c *Coordinator) checkParams() error {
	if math.IsNaN(c.maliciousThreshold) || c.maliciousThreshold < 0 || c.maliciousThreshold > 1 {
		return fmt.Errorf("%w: malicious threshold %v outside [0, 1]", ErrInvalidParams, c.maliciousThreshold)
	}
	if math.IsNaN(c.trustDelta) || c.trustDelta < 0 || c.trustDelta > 1 {
		return fmt.Errorf("%w: trust delta %v outside [0, 1]", ErrInvalidParams, c.trustDelta)
	}
	return nil
}

// RunRound runs one round and returns the winner. Every node's trust score
// is updated before it returns. On error no trust score has changed.
func (c *Coordinator) RunRound(votes VoteAssignment) (Candidate, error) {
	result, err := c.Round(votes)
	if err != nil {
		return "", err
	}
	return result.Winner, nil
}

// Round is RunRound returning the full committed result. Registered
// observers are notified after the commit.
func (c *Coordinator) Round(votes VoteAssignment) (RoundResult, error) {
	result, err := c.runRound(votes)
	if err != nil {
		return RoundResult{}, err
	}
	for _, o := range c.observers {
		o.OnRound(result)
	}
	return result, nil
}

func (c *Coordinator) runRound(votes VoteAssignment) (RoundResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	round := c.rounds + 1
	if err := c.validateVotes(votes); err != nil {
		return RoundResult{}, fmt.Errorf("round %d: %w", round, err)
	}
	tallies, err := c.tallyChains(votes)
	if err != nil {
		return RoundResult{}, fmt.Errorf("round %d: %w", round, err)
	}
	scores, excluded := c.aggregate(tallies)

	result := RoundResult{
		Round:    round,
		Scores:   make([]CandidateScore, len(scores)),
		Excluded: excluded,
	}
	for i, s := range scores {
		result.Scores[i] = CandidateScore{Candidate: c.candidates.At(i), Score: s}
	}

	best := scores.Max()
	var tied []Candidate
	for i, s := range scores {
		if s == best {
			tied = append(tied, c.candidates.At(i))
		}
	}
	if len(tied) == 1 {
		result.Winner, result.Resolution = tied[0], ResolvedByScore
	} else {
		c.logger.Debug("tie on weighted score", "round", round, "tied", tied, "score", best)
		result.Tied = tied
		result.Winner, result.Resolution = c.breakTie(tied, votes)
	}

	c.commit(votes, result.Winner)
	c.rounds = round

	result.Trust = make([]float64, len(c.nodes))
	for i, node := range c.nodes {
		result.Trust[i] = node.trust
	}
	c.logger.Info("round committed",
		"round", round,
		"winner", result.Winner,
		"resolution", result.Resolution.String(),
		"excluded", excluded,
	)
	return result, nil
}

// tallyChains asks every chain for its internal tally. Tallying only reads
// trust scores and votes, so chains can run concurrently.
func (c *Coordinator) tallyChains(votes VoteAssignment) ([]ChainTally, error) {
	tallies := make([]ChainTally, len(c.chains))
	if !c.parallelTally {
		for i, chain := range c.chains {
			tally, _, err := chain.TallyInternalVotes(votes, c.candidates, c.maliciousThreshold)
			if err != nil {
				return nil, fmt.Errorf("chain %d: %w", chain.id, err)
			}
			tallies[i] = tally
		}
		return tallies, nil
	}

	var g errgroup.Group
	for i, chain := range c.chains {
		g.Go(func() error {
			tally, _, err := chain.TallyInternalVotes(votes, c.candidates, c.maliciousThreshold)
			if err != nil {
				return fmt.Errorf("chain %d: %w", chain.id, err)
			}
			tallies[i] = tally
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tallies, nil
}

// aggregate folds the chain tallies into weighted scores, in chain order and
// candidate order, so the floating point result never depends on scheduling.
// It also returns the number of votes dropped as malicious.
func (c *Coordinator) aggregate(tallies []ChainTally) (WeightedTally, int) {
	scores := make(WeightedTally, c.candidates.Len())
	excluded := 0
	for i, chain := range c.chains {
		if chain.Len() == 0 {
			continue
		}
		tally := tallies[i]
		total := tally.Total()
		excluded += chain.Len() - total
		avg := chain.averageTrust()
		if total == 0 {
			c.logger.Debug("chain has no valid votes", "chain", chain.id, "avg_credibility", avg)
			continue
		}
		c.logger.Debug("chain tally", "chain", chain.id, "valid", total, "avg_credibility", avg)
		for j, n := range tally {
			ratio := float64(n) / float64(total)
			scores[j] += ratio * avg
		}
	}
	return scores, excluded
}

// commit applies the trust update to every registered node, counted or not.
func (c *Coordinator) commit(votes VoteAssignment, winner Candidate) {
	for _, node := range c.nodes {
		node.UpdateTrustScore(votes[node.id] == winner, c.trustDelta)
	}
}

// Status lists every chain with its members' current trust scores.
func (c *Coordinator) Status() []ChainStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ChainStatus, len(c.chains))
	for i, chain := range c.chains {
		out[i] = chain.status()
	}
	return out
}

// Snapshot returns the trust scores in registry order.
func (c *Coordinator) Snapshot() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float64, len(c.nodes))
	for i, node := range c.nodes {
		out[i] = node.trust
	}
	return out
}

// Restore replaces every trust score with the given snapshot, taken in
// registry order. Values are clamped to [0, 1].
func (c *Coordinator) Restore(snapshot []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(snapshot) != len(c.nodes) {
		return fmt.Errorf("%w: %d scores for %d nodes", ErrInvalidSnapshot, len(snapshot), len(c.nodes))
	}
	for i, v := range snapshot {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: NaN trust for node %d", ErrInvalidSnapshot, i)
		}
	}
	for i, v := range snapshot {
		c.nodes[i].trust = clamp(v)
	}
	return nil
}

// TrustScore returns the current trust score of a node.
func (c *Coordinator) TrustScore(id int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id < 0 || id >= len(c.nodes) {
		return 0, false
	}
	return c.nodes[id].trust, true
}

// Candidates returns the configured candidate set.
func (c *Coordinator) Candidates() CandidateSet { return c.candidates }

// NodeCount returns the registry size.
func (c *Coordinator) NodeCount() int { return len(c.nodes) }

// Rounds returns the number of committed rounds.
func (c *Coordinator) Rounds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rounds
}

// MaliciousThreshold returns the exclusion threshold.
func (c *Coordinator) MaliciousThreshold() float64 { return c.maliciousThreshold }

// TrustDelta returns the per-round trust step.
func (c *Coordinator) TrustDelta() float64 { return c.trustDelta }
