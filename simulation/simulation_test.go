package simulation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/luca-patrignani/trust-consensus/adversary"
	"github.com/luca-patrignani/trust-consensus/consensus"
)

func TestPartitionEven(t *testing.T) {
	p := Partition(100, 10)
	if len(p) != 10 {
		t.Fatalf("expected 10 chains, got %d", len(p))
	}
	next := 0
	for i, chain := range p {
		if len(chain) != 10 {
			t.Fatalf("chain %d has %d members", i, len(chain))
		}
		for _, id := range chain {
			if id != next {
				t.Fatalf("expected id %d, got %d", next, id)
			}
			next++
		}
	}
}

func TestPartitionRemainderGoesToFirstChains(t *testing.T) {
	want := [][]int{{0, 1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	if diff := cmp.Diff(want, Partition(10, 3)); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
	want = [][]int{{0}, {1}, {}, {}}
	if diff := cmp.Diff(want, Partition(2, 4)); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	broken := []func(*Config){
		func(c *Config) { c.Candidates = nil },
		func(c *Config) { c.Nodes = 0 },
		func(c *Config) { c.Chains = 0 },
		func(c *Config) { c.Rounds = -1 },
		func(c *Config) { c.Attackers = 101 },
		func(c *Config) { c.Strategy = "sybil" },
		func(c *Config) { c.AttackCandidate = "Z" },
		func(c *Config) { c.MaliciousThreshold = 1.5 },
		func(c *Config) { c.TrustDelta = -0.1 },
	}
	for i, mutate := range broken {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Strategy = "none"
	cfg.AttackCandidate = "Z"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("attack candidate is irrelevant without attackers: %v", err)
	}
	cfg.Strategy = "mimic"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("mimicking attackers never vote for the attack candidate: %v", err)
	}
	cfg.Strategy = "flood"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a flood on an unknown candidate, got %v", err)
	}
}

func TestNewRejectsDuplicateCandidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Candidates = []string{"A", "B", "A"}
	if _, err := New(cfg); !errors.Is(err, consensus.ErrDuplicateCandidate) {
		t.Fatalf("expected ErrDuplicateCandidate, got %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, consensus.ErrDuplicateCandidate) {
		t.Fatalf("expected an invalid config for duplicate candidates, got %v", err)
	}
}

func newDeterministic(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sim, err := New(cfg, WithClock(clock), WithRunID("fixed"))
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	return sim
}

// TestPulsingRunIsReproducible plays the default pulsing attack twice with
// the same seed and expects identical winners, reports and final trust.
func TestPulsingRunIsReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 2024

	first := newDeterministic(t, cfg)
	second := newDeterministic(t, cfg)
	r1, err := first.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	r2, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Fatalf("reports differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Coordinator().Snapshot(), second.Coordinator().Snapshot()); diff != "" {
		t.Fatalf("trust differs (-first +second):\n%s", diff)
	}
	if first.Ledger().GetLatest().Hash != second.Ledger().GetLatest().Hash {
		t.Fatalf("ledgers diverged")
	}
}

func TestPulsingRunShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	sim := newDeterministic(t, cfg)
	report, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Rounds != 20 || sim.Ledger().Len() != 21 {
		t.Fatalf("expected 20 rounds and 21 blocks, got %d and %d", report.Rounds, sim.Ledger().Len())
	}
	total := 0
	for _, w := range report.Wins {
		total += w.Wins
	}
	if total != 20 {
		t.Fatalf("wins must add up to 20, got %d", total)
	}
	resolved := 0
	for _, n := range report.Resolutions {
		resolved += n
	}
	if resolved != 20 {
		t.Fatalf("resolutions must add up to 20, got %d", resolved)
	}
	if report.AttackCandidate != "C" || report.AttackerWins != report.Wins[2].Wins {
		t.Fatalf("unexpected attacker summary %+v", report)
	}
	if len(report.AttackerTrust) != 20 || report.AttackerTrust[0].ID != 80 || report.AttackerTrust[19].ID != 99 {
		t.Fatalf("expected attackers 80..99, got %+v", report.AttackerTrust)
	}
	for _, n := range report.AttackerTrust {
		if n.TrustScore < 0 || n.TrustScore > 1 {
			t.Fatalf("attacker %d trust %v outside [0, 1]", n.ID, n.TrustScore)
		}
	}

	for i, o := range sim.Outcomes() {
		round := i + 1
		if o.Result.Round != round {
			t.Fatalf("outcome %d has round %d", i, o.Result.Round)
		}
		if round%2 == 1 {
			if o.Phase != adversary.PhaseAttack || o.AttackerVote != "C" {
				t.Fatalf("round %d: expected attack on C, got %s/%s", round, o.Phase, o.AttackerVote)
			}
		} else if o.Phase != adversary.PhaseRecover {
			t.Fatalf("round %d: expected recover phase, got %s", round, o.Phase)
		}
		block, err := sim.Ledger().GetByIndex(round)
		if err != nil {
			t.Fatalf("block %d: %v", round, err)
		}
		if block.Round.Winner != o.Result.Winner || block.Metadata.Extra["phase"] != o.Phase.String() {
			t.Fatalf("block %d does not match outcome", round)
		}
	}
}

// TestFloodByEveryNode makes every node an attacker: the attack candidate
// wins every round and each attacker gains the trust delta per round.
func TestFloodByEveryNode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 4
	cfg.Chains = 2
	cfg.Attackers = 4
	cfg.Rounds = 5
	cfg.Strategy = "flood"
	sim := newDeterministic(t, cfg)

	report, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.AttackerWins != 5 || report.Verdict != VerdictHighly {
		t.Fatalf("expected 5 attacker wins and a highly successful verdict, got %d %s", report.AttackerWins, report.Verdict)
	}
	for _, n := range report.AttackerTrust {
		if math.Abs(n.TrustScore-0.75) > 1e-9 {
			t.Fatalf("node %d: expected trust 0.75, got %v", n.ID, n.TrustScore)
		}
	}
}

func TestRandomRunWithoutAttackers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "none"
	cfg.Rounds = 3
	sim := newDeterministic(t, cfg)

	report, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sim.Attackers()) != 0 || report.Verdict != VerdictNoAttack || report.AttackerTrust != nil {
		t.Fatalf("expected a run without attackers, got %+v", report)
	}
	for _, o := range sim.Outcomes() {
		if o.Phase != adversary.PhaseNone || o.AttackerVote != "" {
			t.Fatalf("unexpected attacker activity %+v", o)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	sim := newDeterministic(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := sim.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Rounds != 0 {
		t.Fatalf("expected no rounds, got %d", report.Rounds)
	}
}

func TestObserverSeesEveryRound(t *testing.T) {
	var seen []int
	cfg := DefaultConfig()
	cfg.Rounds = 4
	sim, err := New(cfg, WithObserver(consensus.RoundObserverFunc(func(r consensus.RoundResult) {
		seen = append(seen, r.Round)
	})))
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, seen); diff != "" {
		t.Fatalf("observed rounds mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroSeedDrawsRandomSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 0
	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if sim.Seed() == 0 {
		t.Fatalf("expected a drawn seed")
	}
}

func TestRestoreBeforeRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 2
	cfg.Chains = 1
	cfg.Attackers = 0
	sim := newDeterministic(t, cfg)
	if err := sim.Restore([]float64{0.1, 0.9}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if trust, _ := sim.Coordinator().TrustScore(1); trust != 0.9 {
		t.Fatalf("expected restored trust 0.9, got %v", trust)
	}
	if err := sim.Restore([]float64{0.1}); err == nil {
		t.Fatalf("expected error for a short snapshot")
	}
}

func TestVerdictThresholds(t *testing.T) {
	cases := []struct {
		wins, rounds int
		want         Verdict
	}{
		{11, 20, VerdictHighly},
		{10, 20, VerdictPartially},
		{7, 20, VerdictPartially},
		{6, 20, VerdictFailed},
		{0, 0, VerdictFailed},
	}
	for _, c := range cases {
		if got := verdict(c.wins, c.rounds, 3); got != c.want {
			t.Fatalf("verdict(%d, %d): expected %s, got %s", c.wins, c.rounds, c.want, got)
		}
	}
}

func TestRoundHandlerSeesEveryOutcome(t *testing.T) {
	var seen []RoundOutcome
	cfg := DefaultConfig()
	cfg.Rounds = 3
	sim, err := New(cfg, WithRoundHandler(func(o RoundOutcome) {
		seen = append(seen, o)
	}))
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(seen))
	}
	for i, o := range seen {
		if o.Result.Round != i+1 {
			t.Fatalf("outcome %d has round %d", i, o.Result.Round)
		}
		block, err := sim.Ledger().GetByIndex(i + 1)
		if err != nil || block.Round.Winner != o.Result.Winner {
			t.Fatalf("outcome %d handled before its block was recorded", i)
		}
	}
}

func TestMimicRunIgnoresAttackCandidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "mimic"
	cfg.AttackCandidate = ""
	cfg.Rounds = 4
	sim := newDeterministic(t, cfg)
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, o := range sim.Outcomes() {
		if o.Phase != adversary.PhaseRecover || !sim.Coordinator().Candidates().Contains(o.AttackerVote) {
			t.Fatalf("round %d: expected a declared candidate in recover phase, got %q in %s", o.Result.Round, o.AttackerVote, o.Phase)
		}
	}
}
