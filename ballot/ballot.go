// Package ballot draws the votes of honest nodes.
//
// A Generator is driven by a blake2xb extendable-output stream keyed by a
// 64-bit seed, so two generators built from the same seed produce the same
// votes in the same order. A Generator is not safe for concurrent use.
package ballot

import (
	"crypto/cipher"
	"encoding/binary"
	"math/big"

	"go.dedis.ch/kyber/v4/util/random"
	"go.dedis.ch/kyber/v4/xof/blake2xb"

	"github.com/luca-patrignani/trust-consensus/consensus"
)

type Generator struct {
	seed   uint64
	stream cipher.Stream
}

// NewGenerator returns a generator whose draws are fully determined by seed.
func NewGenerator(seed uint64) *Generator {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seed)
	return &Generator{
		seed:   seed,
		stream: blake2xb.New(key[:]),
	}
}

// RandomSeed draws a non-zero seed from the system randomness source.
func RandomSeed() uint64 {
	for {
		seed := binary.BigEndian.Uint64(random.Bits(64, false, random.New()))
		if seed != 0 {
			return seed
		}
	}
}

// Seed returns the seed the generator was built with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Intn returns a uniform integer in [0, n). It panics if n <= 0.
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("ballot: invalid argument to Intn")
	}
	return int(random.Int(big.NewInt(int64(n)), g.stream).Int64())
}

// Pick returns a uniformly chosen candidate of the set.
func (g *Generator) Pick(set consensus.CandidateSet) consensus.Candidate {
	return set.At(g.Intn(set.Len()))
}

// Honest draws one vote per id, in the order the ids are given.
func (g *Generator) Honest(ids []int, set consensus.CandidateSet) consensus.VoteAssignment {
	votes := make(consensus.VoteAssignment, len(ids))
	for _, id := range ids {
		votes[id] = g.Pick(set)
	}
	return votes
}
