package consensus

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCandidates    = errors.New("candidate set is empty")
	ErrDuplicateCandidate = errors.New("duplicate candidate")
	ErrInvalidPartition   = errors.New("invalid chain partition")
	ErrInvalidParams      = errors.New("invalid consensus parameters")
	ErrInvalidSnapshot    = errors.New("invalid trust snapshot")
)

// MissingVoteError is returned when a registered node has no vote in the
// round's assignment. The round is aborted before any trust update.
type MissingVoteError struct {
	NodeID int
}

func (e *MissingVoteError) Error() string {
	return fmt.Sprintf("missing vote for node %d", e.NodeID)
}

// InvalidCandidateError is returned when a vote names a label outside the
// configured candidate set.
type InvalidCandidateError struct {
	NodeID    int
	Candidate Candidate
}

func (e *InvalidCandidateError) Error() string {
	return fmt.Sprintf("node %d voted for unknown candidate %q", e.NodeID, e.Candidate)
}

// UnknownNodeError is returned when the vote assignment carries an id that is
// not in the registry.
type UnknownNodeError struct {
	NodeID int
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("vote from unregistered node %d", e.NodeID)
}
