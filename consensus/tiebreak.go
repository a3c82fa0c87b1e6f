package consensus

import (
	"github.com/elliotchance/orderedmap/v2"
)

// breakTie resolves a weighted-score tie with a strictly descending cascade:
// summed voter trust, count of voters at full trust, a unique highest-trust
// voter, then the first surviving candidate. Stages 1 and 2 look at every
// vote in the registry, including votes the chains excluded as malicious.
func (c *Coordinator) breakTie(tied []Candidate, votes VoteAssignment) (Candidate, Resolution) {
	sums := orderedmap.NewOrderedMap[Candidate, float64]()
	for _, cand := range tied {
		sums.Set(cand, 0)
	}
	for _, node := range c.nodes {
		choice := votes[node.id]
		if s, ok := sums.Get(choice); ok {
			sums.Set(choice, s+node.trust)
		}
	}
	survivors := keysAtMax(sums)
	c.logger.Debug("tie-break trust sums", "survivors", survivors)
	if len(survivors) == 1 {
		return survivors[0], ResolvedByTrustSum
	}

	perfect := orderedmap.NewOrderedMap[Candidate, int]()
	for _, cand := range survivors {
		perfect.Set(cand, 0)
	}
	for _, node := range c.nodes {
		if node.trust != 1.0 {
			continue
		}
		choice := votes[node.id]
		if n, ok := perfect.Get(choice); ok {
			perfect.Set(choice, n+1)
		}
	}
	survivors = keysAtMax(perfect)
	c.logger.Debug("tie-break perfect trust voters", "survivors", survivors)
	if len(survivors) == 1 {
		return survivors[0], ResolvedByPerfectTrust
	}

	if winner, ok := c.uniqueHighestVoter(survivors, votes); ok {
		return winner, ResolvedByHighestVoter
	}
	c.logger.Debug("tie unresolved, defaulting to first candidate", "candidate", survivors[0])
	return survivors[0], ResolvedByFallback
}

// uniqueHighestVoter scans the registry twice: first for the highest trust
// among voters of the survivors, then for every such voter at that trust.
// It succeeds only if exactly one node holds the maximum.
func (c *Coordinator) uniqueHighestVoter(survivors []Candidate, votes VoteAssignment) (Candidate, bool) {
	alive := make(map[Candidate]bool, len(survivors))
	for _, cand := range survivors {
		alive[cand] = true
	}

	highest, found := 0.0, false
	for _, node := range c.nodes {
		if !alive[votes[node.id]] {
			continue
		}
		if !found || node.trust > highest {
			highest, found = node.trust, true
		}
	}
	if !found {
		return "", false
	}

	var holder *Node
	holders := 0
	for _, node := range c.nodes {
		if node.trust == highest && alive[votes[node.id]] {
			holder = node
			holders++
		}
	}
	if holders != 1 {
		return "", false
	}
	return votes[holder.id], true
}

// keysAtMax returns, in insertion order, the keys holding the largest value.
func keysAtMax[V int | float64](m *orderedmap.OrderedMap[Candidate, V]) []Candidate {
	var best V
	first := true
	for el := m.Front(); el != nil; el = el.Next() {
		if first || el.Value > best {
			best, first = el.Value, false
		}
	}
	var out []Candidate
	for el := m.Front(); el != nil; el = el.Next() {
		if el.Value == best {
			out = append(out, el.Key)
		}
	}
	return out
}
