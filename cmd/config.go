package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luca-patrignani/trust-consensus/simulation"
)

const envPrefix = "TRUSTSIM"

// cliOptions are the settings that drive the CLI but not the simulation.
type cliOptions struct {
	ConfigFile  string `mapstructure:"config"`
	Status      bool   `mapstructure:"status"`
	TrustDB     string `mapstructure:"trust-db"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`
}

func addFlags(cmd *cobra.Command) {
	def := simulation.DefaultConfig()
	flags := cmd.Flags()

	flags.String("config", "", "path to a YAML config file")
	flags.StringSlice("candidates", def.Candidates, "candidate labels, in tie-break order")
	flags.Int("nodes", def.Nodes, "number of nodes")
	flags.Int("chains", def.Chains, "number of lower chains")
	flags.Int("rounds", def.Rounds, "number of rounds to play")
	flags.Int("attackers", def.Attackers, "number of attacker nodes, taken from the highest ids")
	flags.String("attack-candidate", def.AttackCandidate, "candidate the attackers push")
	flags.String("strategy", def.Strategy, "attacker strategy: flood, mimic, pulsing or none")
	flags.Uint64("seed", def.Seed, "seed of the honest votes, 0 draws a random one")
	flags.Float64("malicious-threshold", def.MaliciousThreshold, "trust at or below which votes are excluded")
	flags.Float64("trust-delta", def.TrustDelta, "trust reward and penalty per round")
	flags.Bool("parallel-tally", def.ParallelTally, "tally the lower chains concurrently")
	flags.Bool("status", false, "print every node's trust at the end of the run")
	flags.String("trust-db", "", "leveldb directory to load trust from and save it to")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9100")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
}

// loadConfig merges flags, TRUSTSIM_* environment variables and the optional
// config file, in this order of precedence.
func loadConfig(cmd *cobra.Command) (simulation.Config, cliOptions, error) {
	vip := viper.New()
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vip.AutomaticEnv()
	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return simulation.Config{}, cliOptions{}, fmt.Errorf("bind flags: %w", err)
	}

	if file := vip.GetString("config"); file != "" {
		vip.SetConfigFile(file)
		if err := vip.ReadInConfig(); err != nil {
			return simulation.Config{}, cliOptions{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	// Every field has a flag carrying its default. Decoding into the zero value
	// keeps a shorter list from inheriting default elements.
	var cfg simulation.Config
	if err := vip.Unmarshal(&cfg, hook, zeroFields); err != nil {
		return simulation.Config{}, cliOptions{}, fmt.Errorf("parse config: %w", err)
	}
	var opts cliOptions
	if err := vip.Unmarshal(&opts, hook); err != nil {
		return simulation.Config{}, cliOptions{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return simulation.Config{}, cliOptions{}, err
	}
	return cfg, opts, nil
}

func zeroFields(dc *mapstructure.DecoderConfig) {
	dc.ZeroFields = true
}

// newLogger builds the slog logger backed by pterm.
func newLogger(level string) (*slog.Logger, error) {
	var lvl pterm.LogLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = pterm.LogLevelDebug
	case "info", "":
		lvl = pterm.LogLevelInfo
	case "warn", "warning":
		lvl = pterm.LogLevelWarn
	case "error":
		lvl = pterm.LogLevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	handler := pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(lvl))
	return slog.New(handler), nil
}
