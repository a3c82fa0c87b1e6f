// Package store persists per-node trust scores between simulation runs in a
// LevelDB database. Nothing else about a run is stored.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no trust snapshot")

var (
	metaNodesKey = []byte("meta/nodes")
	trustPrefix  = []byte("trust/")
)

// TrustStore is a LevelDB-backed trust snapshot store.
type TrustStore struct {
	path   string
	db     *leveldb.DB
	logger *slog.Logger
}

// Open opens or creates the store at path, recovering a corrupted database.
func Open(path string, logger *slog.Logger) (*TrustStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open trust store: %w", err)
	}
	return newTrustStore(path, db, logger), nil
}

// OpenMemory returns a store kept in memory.
func OpenMemory(logger *slog.Logger) (*TrustStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory trust store: %w", err)
	}
	return newTrustStore(":memory:", db, logger), nil
}

func newTrustStore(path string, db *leveldb.DB, logger *slog.Logger) *TrustStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TrustStore{path: path, db: db, logger: logger.With("store", path)}
}

func trustKey(id int) []byte {
	key := make([]byte, len(trustPrefix)+4)
	copy(key, trustPrefix)
	binary.BigEndian.PutUint32(key[len(trustPrefix):], uint32(id))
	return key
}

// Save writes the trust scores, indexed by node id, in a single batch.
func (s *TrustStore) Save(trust []float64) error {
	batch := new(leveldb.Batch)
	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(trust)))
	batch.Put(metaNodesKey, count[:])
	for id, v := range trust {
		var value [8]byte
		binary.BigEndian.PutUint64(value[:], math.Float64bits(v))
		batch.Put(trustKey(id), value[:])
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("save trust: %w", err)
	}
	s.logger.Debug("trust saved", "nodes", len(trust))
	return nil
}

// Load reads the last saved trust scores.
func (s *TrustStore) Load() ([]float64, error) {
	raw, err := s.db.Get(metaNodesKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load node count: %w", err)
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("load node count: malformed value of %d bytes", len(raw))
	}
	trust := make([]float64, binary.BigEndian.Uint64(raw))
	for id := range trust {
		value, err := s.db.Get(trustKey(id), nil)
		if err != nil {
			return nil, fmt.Errorf("load trust of node %d: %w", id, err)
		}
		if len(value) != 8 {
			return nil, fmt.Errorf("load trust of node %d: malformed value of %d bytes", id, len(value))
		}
		trust[id] = math.Float64frombits(binary.BigEndian.Uint64(value))
	}
	s.logger.Debug("trust loaded", "nodes", len(trust))
	return trust, nil
}

// Path returns the database directory, or ":memory:".
func (s *TrustStore) Path() string {
	return s.path
}

func (s *TrustStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close trust store: %w", err)
	}
	return nil
}
