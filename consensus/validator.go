package consensus

// validateVotes checks that the assignment holds exactly one valid vote per
// registered node. Errors are reported for the lowest offending node id so
// that a bad assignment always fails the same way.
func (c *Coordinator) validateVotes(votes VoteAssignment) error {
	for _, node := range c.nodes {
		choice, ok := votes[node.id]
		if !ok {
			return &MissingVoteError{NodeID: node.id}
		}
		if !c.candidates.Contains(choice) {
			return &InvalidCandidateError{NodeID: node.id, Candidate: choice}
		}
	}
	if len(votes) == len(c.nodes) {
		return nil
	}
	// every registered id is present, so the surplus must be unregistered ids
	extra, found := 0, false
	for id := range votes {
		if id >= 0 && id < len(c.nodes) {
			continue
		}
		if !found || id < extra {
			extra, found = id, true
		}
	}
	return &UnknownNodeError{NodeID: extra}
}
