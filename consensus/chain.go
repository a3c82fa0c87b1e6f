package consensus

// LowerChain is a fixed partition of the registry. It counts the votes of its
// members and drops the votes of members currently deemed malicious.
type LowerChain struct {
	id      int
	members []*Node
}

// ID returns the chain identity.
func (c *LowerChain) ID() int { return c.id }

// Members returns the chain members in membership order. The nodes are shared
// with the coordinator's registry.
func (c *LowerChain) Members() []*Node {
	out := make([]*Node, len(c.members))
	copy(out, c.members)
	return out
}

// Len returns the number of members.
func (c *LowerChain) Len() int { return len(c.members) }

// TallyInternalVotes counts one vote per non-malicious member, in membership
// order, and returns the tally together with the members whose vote was
// counted. Malicious members stay in the chain; only their vote is ignored.
func (c *LowerChain) TallyInternalVotes(votes VoteAssignment, candidates CandidateSet, threshold float64) (ChainTally, []*Node, error) {
	tally := make(ChainTally, candidates.Len())
	counted := make([]*Node, 0, len(c.members))
	for _, node := range c.members {
		choice, ok := votes[node.id]
		if !ok {
			return nil, nil, &MissingVoteError{NodeID: node.id}
		}
		idx := candidates.IndexOf(choice)
		if idx < 0 {
			return nil, nil, &InvalidCandidateError{NodeID: node.id, Candidate: choice}
		}
		if node.IsMalicious(threshold) {
			continue
		}
		tally[idx]++
		counted = append(counted, node)
	}
	return tally, counted, nil
}

// averageTrust is the mean trust over every member, excluded ones included.
// It must not be called on an empty chain.
func (c *LowerChain) averageTrust() float64 {
	sum := 0.0
	for _, node := range c.members {
		sum += node.trust
	}
	return sum / float64(len(c.members))
}

func (c *LowerChain) status() ChainStatus {
	nodes := make([]NodeStatus, len(c.members))
	for i, node := range c.members {
		nodes[i] = NodeStatus{ID: node.id, TrustScore: node.trust}
	}
	return ChainStatus{ID: c.id, Nodes: nodes}
}
