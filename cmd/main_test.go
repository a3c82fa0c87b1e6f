package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/trust-consensus/consensus"
	"github.com/luca-patrignani/trust-consensus/metrics"
	"github.com/luca-patrignani/trust-consensus/simulation"
)

func testCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newRootCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, opts, err := loadConfig(testCmd(t))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if diff := cmp.Diff(simulation.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if opts.LogLevel != "info" || opts.Status || opts.TrustDB != "" {
		t.Fatalf("unexpected cli options %+v", opts)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, opts, err := loadConfig(testCmd(t,
		"--nodes", "12", "--chains", "3", "--attackers", "2",
		"--candidates", "X,Y", "--attack-candidate", "Y",
		"--strategy", "flood", "--seed", "9", "--status",
	))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Nodes != 12 || cfg.Chains != 3 || cfg.Attackers != 2 || cfg.Seed != 9 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, cfg.Candidates); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if cfg.Strategy != "flood" || cfg.AttackCandidate != "Y" || !opts.Status {
		t.Fatalf("flags not applied: %+v %+v", cfg, opts)
	}
}

func TestLoadConfigShorterCandidateLists(t *testing.T) {
	cfg, _, err := loadConfig(testCmd(t, "--candidates", "P", "--attack-candidate", "P"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if diff := cmp.Diff([]string{"P"}, cfg.Candidates); diff != "" {
		t.Fatalf("flag candidates mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("TRUSTSIM_CANDIDATES", "X,Y")
	t.Setenv("TRUSTSIM_ATTACK_CANDIDATE", "Y")
	cfg, _, err = loadConfig(testCmd(t))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, cfg.Candidates); diff != "" {
		t.Fatalf("env candidates mismatch (-want +got):\n%s", diff)
	}

	// an empty variable counts as unset, so the default attack candidate C applies
	t.Setenv("TRUSTSIM_ATTACK_CANDIDATE", "")
	if _, _, err := loadConfig(testCmd(t)); err == nil {
		t.Fatalf("expected an error for attack candidate C outside [X Y]")
	}
}

func TestLoadConfigFileCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustsim.yaml")
	yaml := "candidates:\n  - L\n  - M\nattack-candidate: M\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, err := loadConfig(testCmd(t, "--config", path))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if diff := cmp.Diff([]string{"L", "M"}, cfg.Candidates); diff != "" {
		t.Fatalf("file candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustsim.yaml")
	yaml := "nodes: 30\nchains: 5\nstrategy: mimic\nrounds: 4\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRUSTSIM_ROUNDS", "8")

	cfg, _, err := loadConfig(testCmd(t, "--config", path))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Nodes != 30 || cfg.Chains != 5 || cfg.Strategy != "mimic" {
		t.Fatalf("config file not applied: %+v", cfg)
	}
	if cfg.Rounds != 8 {
		t.Fatalf("expected the environment to override the file, got %d rounds", cfg.Rounds)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	if _, _, err := loadConfig(testCmd(t, "--attack-candidate", "Z")); err == nil {
		t.Fatalf("expected an error for an unknown attack candidate")
	}
	if _, _, err := loadConfig(testCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		if _, err := newLogger(level); err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
	}
	if _, err := newLogger("loud"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("localhost", defaultMetricsPort)
	if err != nil || host != "localhost" || port != "9100" {
		t.Fatalf("expected localhost:9100, got %s:%s (%v)", host, port, err)
	}
	host, port, err = splitHostPort(":8080", defaultMetricsPort)
	if err != nil || host != "" || port != "8080" {
		t.Fatalf("expected :8080, got %s:%s (%v)", host, port, err)
	}
}

func TestRunWithTrustDB(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trust")
	args := []string{"--nodes", "6", "--chains", "2", "--attackers", "1", "--rounds", "2", "--trust-db", db, "--log-level", "error"}

	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	cmd = newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestServeMetrics(t *testing.T) {
	l, err := listenMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector()
	collector.OnRound(consensus.RoundResult{Round: 1, Winner: "A", Trust: []float64{0.55}})
	serveMetrics(ctx, l, collector.Handler(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "trustsim_rounds_total 1") {
		t.Fatalf("unexpected metrics body:\n%s", body)
	}
}
