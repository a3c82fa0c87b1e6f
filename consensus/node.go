package consensus

import "fmt"

const (
	// InitialTrustScore is the trust every node starts with.
	InitialTrustScore = 0.5
	// DefaultMaliciousThreshold excludes a node's vote when its trust is at or below it.
	DefaultMaliciousThreshold = 0.25
	// DefaultTrustDelta is the per-round trust reward or penalty.
	DefaultTrustDelta = 0.05
)

// Node is a registry entry: an immutable identity and a mutable trust score
// in [0, 1].
type Node struct {
	id    int
	trust float64
}

func newNode(id int) *Node {
	return &Node{id: id, trust: InitialTrustScore}
}

// ID returns the node identity.
func (n *Node) ID() int { return n.id }

// TrustScore returns the current trust score.
func (n *Node) TrustScore() float64 { return n.trust }

// IsMalicious reports whether the node's vote must be excluded this round.
// The boundary is inclusive.
func (n *Node) IsMalicious(threshold float64) bool {
	return n.trust <= threshold
}

// UpdateTrustScore rewards the node by delta if it voted for the winner and
// penalizes it otherwise, then clamps the score to [0, 1].
func (n *Node) UpdateTrustScore(votedForWinner bool, delta float64) {
	if votedForWinner {
		n.trust += delta
	} else {
		n.trust -= delta
	}
	n.trust = clamp(n.trust)
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(id=%d, trust=%.2f)", n.id, n.trust)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
