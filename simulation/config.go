package simulation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/luca-patrignani/trust-consensus/consensus"
)

var ErrInvalidConfig = errors.New("invalid simulation config")

// Config describes one simulation run. Attackers are the highest node ids:
// with 100 nodes and 20 attackers, nodes 80 to 99 attack.
type Config struct {
	Candidates         []string `mapstructure:"candidates"`
	Nodes              int      `mapstructure:"nodes"`
	Chains             int      `mapstructure:"chains"`
	Rounds             int      `mapstructure:"rounds"`
	Attackers          int      `mapstructure:"attackers"`
	AttackCandidate    string   `mapstructure:"attack-candidate"`
	Strategy           string   `mapstructure:"strategy"`
	Seed               uint64   `mapstructure:"seed"`
	MaliciousThreshold float64  `mapstructure:"malicious-threshold"`
	TrustDelta         float64  `mapstructure:"trust-delta"`
	ParallelTally      bool     `mapstructure:"parallel-tally"`
}

// DefaultConfig returns the pulsing attack setup: 100 nodes in 10 chains,
// 20 rounds, nodes 80 to 99 pushing candidate C.
func DefaultConfig() Config {
	return Config{
		Candidates:         []string{"A", "B", "C"},
		Nodes:              100,
		Chains:             10,
		Rounds:             20,
		Attackers:          20,
		AttackCandidate:    "C",
		Strategy:           "pulsing",
		Seed:               1,
		MaliciousThreshold: consensus.DefaultMaliciousThreshold,
		TrustDelta:         consensus.DefaultTrustDelta,
	}
}

var strategies = []string{"flood", "mimic", "pulsing", "none"}

// Validate checks the config for values a run cannot start with.
func (c Config) Validate() error {
	if len(c.Candidates) == 0 {
		return fmt.Errorf("%w: no candidates", ErrInvalidConfig)
	}
	if _, err := c.candidateSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Nodes <= 0 {
		return fmt.Errorf("%w: nodes must be positive, got %d", ErrInvalidConfig, c.Nodes)
	}
	if c.Chains <= 0 {
		return fmt.Errorf("%w: chains must be positive, got %d", ErrInvalidConfig, c.Chains)
	}
	if c.Rounds < 0 {
		return fmt.Errorf("%w: rounds must not be negative, got %d", ErrInvalidConfig, c.Rounds)
	}
	if c.Attackers < 0 || c.Attackers > c.Nodes {
		return fmt.Errorf("%w: attackers must be in [0, %d], got %d", ErrInvalidConfig, c.Nodes, c.Attackers)
	}
	if !slices.Contains(strategies, c.Strategy) {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if c.attacksTarget() && c.Attackers > 0 && !slices.Contains(c.Candidates, c.AttackCandidate) {
		return fmt.Errorf("%w: attack candidate %q is not a candidate", ErrInvalidConfig, c.AttackCandidate)
	}
	if c.MaliciousThreshold < 0 || c.MaliciousThreshold > 1 {
		return fmt.Errorf("%w: malicious threshold must be in [0, 1], got %v", ErrInvalidConfig, c.MaliciousThreshold)
	}
	if c.TrustDelta < 0 || c.TrustDelta > 1 {
		return fmt.Errorf("%w: trust delta must be in [0, 1], got %v", ErrInvalidConfig, c.TrustDelta)
	}
	return nil
}

// attacksTarget reports whether the strategy ever votes for the attack
// candidate.
func (c Config) attacksTarget() bool {
	return c.Strategy == "flood" || c.Strategy == "pulsing"
}

func (c Config) candidateSet() (consensus.CandidateSet, error) {
	labels := make([]consensus.Candidate, len(c.Candidates))
	for i, l := range c.Candidates {
		labels[i] = consensus.Candidate(l)
	}
	return consensus.NewCandidateSet(labels...)
}

// Partition splits node ids 0..nodes-1 into contiguous chains. When nodes do
// not divide evenly the first chains get one extra member; with more chains
// than nodes the trailing chains are empty.
func Partition(nodes, chains int) [][]int {
	partition := make([][]int, chains)
	size, rem := nodes/chains, nodes%chains
	next := 0
	for i := range partition {
		n := size
		if i < rem {
			n++
		}
		partition[i] = make([]int, n)
		for j := range partition[i] {
			partition[i][j] = next
			next++
		}
	}
	return partition
}
