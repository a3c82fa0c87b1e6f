package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/zeebo/blake3"

	"github.com/luca-patrignani/trust-consensus/consensus"
)

const genesisPrevHash = "0"

type Blockchain struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	runID  string
	blocks []Block
}

type blockchainOption func(*Blockchain)

// WithClock sets the clock used to timestamp blocks.
func WithClock(clock clockwork.Clock) blockchainOption {
	return func(bc *Blockchain) {
		bc.clock = clock
	}
}

// NewBlockchain creates a ledger for one simulation run with an initialized
// genesis block. The genesis block has index 0, previous hash "0" and an
// empty round record numbered 0.
func NewBlockchain(runID string, opts ...blockchainOption) *Blockchain {
	bc := &Blockchain{
		clock:  clockwork.NewRealClock(),
		runID:  runID,
		blocks: make([]Block, 0),
	}
	for _, opt := range opts {
		opt(bc)
	}

	genesis := Block{
		Index:     0,
		Timestamp: bc.clock.Now().Unix(),
		PrevHash:  genesisPrevHash,
		Round:     RoundRecord{Resolution: "genesis"},
		Metadata:  Metadata{RunID: runID},
	}
	genesis.Hash = calculateHash(genesis)
	bc.blocks = append(bc.blocks, genesis)

	return bc
}

// Append records a committed round. The block is validated against the
// latest block before it is added. The extra parameter can optionally carry
// free-form metadata such as the attack phase.
func (bc *Blockchain) Append(result consensus.RoundResult, extra ...map[string]string) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	var extraMsg map[string]string
	if len(extra) > 0 {
		extraMsg = extra[0]
	}
	latest := bc.blocks[len(bc.blocks)-1]

	newBlock := Block{
		Index:     latest.Index + 1,
		Timestamp: bc.clock.Now().Unix(),
		PrevHash:  latest.Hash,
		Round: RoundRecord{
			Number:      result.Round,
			Winner:      result.Winner,
			Resolution:  result.Resolution.String(),
			Scores:      result.Scores,
			Tied:        result.Tied,
			Excluded:    result.Excluded,
			TrustDigest: TrustDigest(result.Trust),
		},
		Metadata: Metadata{
			RunID: bc.runID,
			Extra: extraMsg,
		},
	}
	newBlock.Hash = calculateHash(newBlock)

	if err := validateBlock(newBlock, latest); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}

	bc.blocks = append(bc.blocks, newBlock)
	return nil
}

// GetLatest returns the most recently added block.
func (bc *Blockchain) GetLatest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.blocks[len(bc.blocks)-1]
}

// GetByIndex retrieves a block by its index in the chain. Returns an error if
// the index is out of range.
func (bc *Blockchain) GetByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index %d out of range", index)
	}
	return bc.blocks[index], nil
}

// Len returns the number of blocks, genesis included.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// Verify validates the integrity of the entire chain by checking the genesis
// block and each block's hash, index continuity and previous hash linkage.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return fmt.Errorf("empty blockchain")
	}
	if bc.blocks[0].PrevHash != genesisPrevHash {
		return fmt.Errorf("invalid genesis block")
	}
	if bc.blocks[0].Hash != calculateHash(bc.blocks[0]) {
		return fmt.Errorf("invalid genesis hash")
	}

	for i := 1; i < len(bc.blocks); i++ {
		if err := validateBlock(bc.blocks[i], bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

// validateBlock verifies a block relative to the previous one: index and
// round continuity, previous hash linkage and its own hash.
func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.Round.Number != previous.Round.Number+1 {
		return fmt.Errorf("invalid round: expected %d, got %d", previous.Round.Number+1, current.Round.Number)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	expectedHash := calculateHash(current)
	if current.Hash != expectedHash {
		return fmt.Errorf("invalid hash: expected %s, got %s", expectedHash, current.Hash)
	}
	return nil
}

// calculateHash computes the blake3 hash of a block from its index,
// timestamp, previous hash, round record and metadata. The record and the
// metadata are JSON marshaled before hashing.
func calculateHash(block Block) string {
	roundBytes, _ := json.Marshal(block.Round)
	metaBytes, _ := json.Marshal(block.Metadata)

	data := fmt.Sprintf("%d%d%s%s%s",
		block.Index,
		block.Timestamp,
		block.PrevHash,
		string(roundBytes),
		string(metaBytes),
	)

	hash := blake3.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// TrustDigest hashes trust scores by their exact bit patterns, so two digests
// match only if every score is bit-identical.
func TrustDigest(trust []float64) string {
	buf := make([]byte, 8*len(trust))
	for i, v := range trust {
		binary.BigEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	hash := blake3.Sum256(buf)
	return hex.EncodeToString(hash[:])
}
