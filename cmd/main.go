package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/trust-consensus/metrics"
	"github.com/luca-patrignani/trust-consensus/simulation"
	"github.com/luca-patrignani/trust-consensus/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trustsim",
		Short:         "Simulate trust-weighted two-tier voting under attack",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd)
			if err != nil {
				pterm.Error.Println(err.Error())
			}
			return err
		},
	}
	addFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command) error {
	cfg, opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	printBanner()

	collector := metrics.NewCollector()
	sim, err := simulation.New(cfg,
		simulation.WithLogger(logger),
		simulation.WithObserver(collector),
		simulation.WithRoundHandler(printRound),
	)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Run %s with seed %d", sim.RunID(), sim.Seed())
	if attackers := sim.Attackers(); len(attackers) > 0 {
		pterm.Info.Printfln("Attacker nodes %d..%d use the %s strategy on candidate %s",
			attackers[0], attackers[len(attackers)-1], cfg.Strategy, cfg.AttackCandidate)
	}

	var trustStore *store.TrustStore
	if opts.TrustDB != "" {
		trustStore, err = store.Open(opts.TrustDB, logger)
		if err != nil {
			return err
		}
		defer trustStore.Close()
		if err := restoreTrust(sim, trustStore, logger); err != nil {
			return err
		}
	}

	if opts.MetricsAddr != "" {
		l, err := listenMetrics(opts.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		serveMetrics(ctx, l, collector.Handler(), logger)
	}

	report, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	head := sim.Ledger().GetLatest()
	pterm.Success.Printfln("Ledger verified: %d blocks, head %s", sim.Ledger().Len(), head.Hash[:16])

	if opts.Status {
		printStatus(sim.Coordinator().Status())
	}
	printReport(report)

	if trustStore != nil {
		if err := trustStore.Save(sim.Coordinator().Snapshot()); err != nil {
			return err
		}
		pterm.Success.Printfln("Trust saved to %s", trustStore.Path())
	}
	return nil
}

// restoreTrust loads the saved trust scores into the simulator. A missing or
// mismatched snapshot leaves every node at its initial trust.
func restoreTrust(sim *simulation.Simulator, s *store.TrustStore, logger *slog.Logger) error {
	trust, err := s.Load()
	if errors.Is(err, store.ErrNoSnapshot) {
		logger.Info("no saved trust, starting fresh", "path", s.Path())
		return nil
	}
	if err != nil {
		return err
	}
	if err := sim.Restore(trust); err != nil {
		logger.Warn("ignoring saved trust", "path", s.Path(), "error", err)
		return nil
	}
	logger.Info("trust restored", "path", s.Path(), "nodes", len(trust))
	return nil
}
