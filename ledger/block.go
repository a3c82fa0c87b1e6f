package ledger

import "github.com/luca-patrignani/trust-consensus/consensus"

// Block is one committed round in the ledger.
type Block struct {
	Index     int         `json:"index"`
	Timestamp int64       `json:"timestamp"`
	PrevHash  string      `json:"prev_hash"`
	Hash      string      `json:"hash"`
	Round     RoundRecord `json:"round"`
	Metadata  Metadata    `json:"metadata"`
}

// RoundRecord is the part of a consensus.RoundResult worth auditing.
type RoundRecord struct {
	Number     int                        `json:"number"`
	Winner     consensus.Candidate        `json:"winner"`
	Resolution string                     `json:"resolution"`
	Scores     []consensus.CandidateScore `json:"scores"`
	Tied       []consensus.Candidate      `json:"tied,omitempty"`
	Excluded   int                        `json:"excluded"`
	// TrustDigest is the blake3 hash of the post-round trust scores.
	TrustDigest string `json:"trust_digest"`
}

type Metadata struct {
	RunID string            `json:"run_id"`
	Extra map[string]string `json:"extra,omitempty"`
}
