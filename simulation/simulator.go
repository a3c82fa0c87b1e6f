package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/luca-patrignani/trust-consensus/adversary"
	"github.com/luca-patrignani/trust-consensus/ballot"
	"github.com/luca-patrignani/trust-consensus/consensus"
	"github.com/luca-patrignani/trust-consensus/ledger"
)

// RoundOutcome is one simulated round as seen by the driver.
type RoundOutcome struct {
	Phase adversary.Phase
	// AttackerVote is empty in rounds without attackers.
	AttackerVote consensus.Candidate
	Result       consensus.RoundResult
}

// Simulator drives a Coordinator through a multi-round run: it draws the
// honest votes, lets the adversary strategy vote for the attacker nodes and
// records every committed round in a ledger.
type Simulator struct {
	cfg        Config
	candidates consensus.CandidateSet
	coord      *consensus.Coordinator
	gen        *ballot.Generator
	strategy   adversary.Strategy
	honest     []int
	attackers  []int
	ledger     *ledger.Blockchain
	logger     *slog.Logger
	clock      clockwork.Clock
	observers  []consensus.RoundObserver
	handlers   []func(RoundOutcome)
	runID      string
	outcomes   []RoundOutcome
}

type simulatorOption func(*Simulator)

func WithLogger(logger *slog.Logger) simulatorOption {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer on the underlying coordinator.
func WithObserver(o consensus.RoundObserver) simulatorOption {
	return func(s *Simulator) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithRoundHandler registers a function called with every played round,
// after it has been recorded in the ledger.
func WithRoundHandler(h func(RoundOutcome)) simulatorOption {
	return func(s *Simulator) {
		if h != nil {
			s.handlers = append(s.handlers, h)
		}
	}
}

// WithClock sets the clock used to timestamp ledger blocks.
func WithClock(clock clockwork.Clock) simulatorOption {
	return func(s *Simulator) {
		s.clock = clock
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) simulatorOption {
	return func(s *Simulator) {
		s.runID = id
	}
}

// New validates cfg and builds a simulator ready to run. A zero seed is
// replaced with a random one, readable through Seed.
func New(cfg Config, opts ...simulatorOption) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	candidates, err := cfg.candidateSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = ballot.RandomSeed()
	}

	s := &Simulator{
		cfg:        cfg,
		candidates: candidates,
		gen:        ballot.NewGenerator(cfg.Seed),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:      clockwork.NewRealClock(),
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.strategy, err = adversary.New(cfg.Strategy, consensus.Candidate(cfg.AttackCandidate), candidates, s.gen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	firstAttacker := cfg.Nodes - cfg.Attackers
	if cfg.Strategy == "none" {
		firstAttacker = cfg.Nodes
	}
	for id := 0; id < cfg.Nodes; id++ {
		if id < firstAttacker {
			s.honest = append(s.honest, id)
		} else {
			s.attackers = append(s.attackers, id)
		}
	}

	s.coord, err = consensus.NewCoordinator(
		Partition(cfg.Nodes, cfg.Chains),
		candidates,
		consensus.WithMaliciousThreshold(cfg.MaliciousThreshold),
		consensus.WithTrustDelta(cfg.TrustDelta),
		consensus.WithParallelTally(cfg.ParallelTally),
		consensus.WithLogger(s.logger),
		consensus.WithObserver(consensus.RoundObserverFunc(s.notify)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.ledger = ledger.NewBlockchain(s.runID, ledger.WithClock(s.clock))

	s.logger.Info("simulation ready",
		"run_id", s.runID,
		"seed", cfg.Seed,
		"nodes", cfg.Nodes,
		"chains", cfg.Chains,
		"attackers", len(s.attackers),
		"strategy", s.strategy.Name(),
	)
	return s, nil
}

func (s *Simulator) notify(result consensus.RoundResult) {
	for _, o := range s.observers {
		o.OnRound(result)
	}
}

// Restore loads per-node trust scores before the first round.
func (s *Simulator) Restore(trust []float64) error {
	return s.coord.Restore(trust)
}

// Step plays the next round.
func (s *Simulator) Step() (RoundOutcome, error) {
	round := s.coord.Rounds() + 1
	honest := s.gen.Honest(s.honest, s.candidates)

	outcome := RoundOutcome{Phase: s.strategy.Phase(round)}
	votes := make(consensus.VoteAssignment, s.cfg.Nodes)
	maps.Copy(votes, honest)
	if len(s.attackers) > 0 {
		outcome.AttackerVote = s.strategy.Vote(round, honest)
		for _, id := range s.attackers {
			votes[id] = outcome.AttackerVote
		}
	}

	s.logger.Info("round start", "round", round, "phase", outcome.Phase.String())

	result, err := s.coord.Round(votes)
	if err != nil {
		return RoundOutcome{}, err
	}
	outcome.Result = result

	extra := map[string]string{"phase": outcome.Phase.String()}
	if outcome.AttackerVote != "" {
		extra["attacker_vote"] = string(outcome.AttackerVote)
	}
	extra["seed"] = strconv.FormatUint(s.cfg.Seed, 10)
	if err := s.ledger.Append(result, extra); err != nil {
		return RoundOutcome{}, fmt.Errorf("ledger: %w", err)
	}

	s.outcomes = append(s.outcomes, outcome)
	for _, h := range s.handlers {
		h(outcome)
	}
	return outcome, nil
}

// Run plays the configured number of rounds and returns the final report.
// It stops early with the context's error when ctx is done.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	for len(s.outcomes) < s.cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return s.Report(), err
		}
		if _, err := s.Step(); err != nil {
			return s.Report(), err
		}
	}
	if err := s.ledger.Verify(); err != nil {
		return s.Report(), fmt.Errorf("ledger: %w", err)
	}
	return s.Report(), nil
}

func (s *Simulator) Coordinator() *consensus.Coordinator { return s.coord }

func (s *Simulator) Ledger() *ledger.Blockchain { return s.ledger }

func (s *Simulator) Outcomes() []RoundOutcome { return s.outcomes }

func (s *Simulator) RunID() string { return s.runID }

func (s *Simulator) Seed() uint64 { return s.cfg.Seed }

// Attackers returns the ids of the attacker nodes.
func (s *Simulator) Attackers() []int { return s.attackers }
