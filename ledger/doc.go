// Package ledger implements an append-only, in-memory log of the rounds
// committed by a consensus.Coordinator.
//
// # Core Components
//
// Blockchain: an append-only log of committed rounds with hash chaining for
// tamper detection. The simulation driver appends one block per committed
// round, tagged with the attack phase of that round.
//
// Block: a single committed round with its winner, weighted scores, the
// tie-break stage that decided it, and a digest of the post-round trust
// scores.
//
// # Security Properties
//
// The blockchain provides:
//   - Verifiability: Verify walks the whole chain and recomputes every hash
//   - Tamper detection: any modification breaks the hash chain
//   - Reproducibility checks: equal trust digests mean bit-identical trust
//
// The ledger lives for one simulation run and is never written to disk.
package ledger
