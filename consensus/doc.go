// Package consensus implements a two-tier, trust-weighted voting consensus
// that resists manipulation by nodes whose trust has fallen too low.
//
// # Core Components
//
// Node: a registry entry with an immutable id and a trust score in [0, 1].
//
// LowerChain: a fixed partition of the registry that tallies its members'
// votes, dropping the votes of members at or below the malicious threshold.
//
// Coordinator: the upper chain. It owns every node and chain and runs a round
// end to end.
//
// # Round Protocol
//
// Each round follows these steps:
//  1. The vote assignment is validated: one known candidate per registered node
//  2. Every lower chain tallies its non-malicious votes
//  3. Each chain adds (votes for c / valid votes) * average chain trust to the
//     score of every candidate c; the average covers all members
//  4. The highest score wins; an exact tie goes to the tie-break cascade
//  5. Every node gains trust if it voted for the winner and loses it otherwise
//
// A round either completes with every trust score updated or fails before
// any trust score changes.
//
// # Tie-break Cascade
//
// Tied candidates are narrowed by the summed trust of their voters, then by
// the number of voters at full trust, then by a unique highest-trust voter.
// If all stages stay ambiguous the first surviving candidate, in declaration
// order, wins.
//
// Scores are compared with exact floating point equality. Accumulation
// always runs in chain order then candidate order so that results are
// reproducible bit for bit.
package consensus
