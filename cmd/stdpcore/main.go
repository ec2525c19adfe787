package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

func main() {
	var cliOverrides core.CLIOverrides
	var memoryBudget string

	rootCmd := &cobra.Command{
		Use:   "stdpcore",
		Short: "stdpcore - STDP timing rules for multi-core spiking simulations",
		Long: "Runs spike-timing-dependent plasticity rules over synaptic rows, one " +
			"worker per simulated core, with snapshot persistence and a run registry.",
		SilenceUsage: true,
	}

	// CLI flags - highest priority in the config hierarchy.
	f := rootCmd.PersistentFlags()

	cliOverrides.ConfigPath = f.StringP("config", "f", "", "Path to YAML config file (overrides STDPCORE_CONFIG env)")
	cliOverrides.Rule = f.StringP("rule", "r", "", "Timing rule name")
	cliOverrides.AccumulatorDepression = f.Int32("acc-depression", 0, "Accumulator depression bound (< 0)")
	cliOverrides.AccumulatorPotentiation = f.Int32("acc-potentiation", 0, "Accumulator potentiation bound (> 0)")
	cliOverrides.PreWindowLength = f.Uint32("pre-window", 0, "Fixed pre window length in timesteps")
	cliOverrides.PostWindowLength = f.Uint32("post-window", 0, "Fixed post window length in timesteps")
	cliOverrides.Alpha = f.Int32("alpha", 0, "vogels-2011 depression offset (fixed point)")
	cliOverrides.Cores = f.Int("cores", 0, "Number of simulated cores")
	f.StringVar(&memoryBudget, "memory-budget", "", "Per-core memory budget, e.g. 64KB")
	cliOverrides.RuntimeLog = f.Bool("runtime-log", false, "Log every spike inside the timing rules")

	// Storage flags
	cliOverrides.StorageBackend = f.String("storage", "", "Snapshot backend: file | memory | sqlite")
	cliOverrides.DataPath = f.String("data-path", "", "Data directory (file) or database file (sqlite)")
	cliOverrides.Compress = f.Bool("compress", false, "Gzip snapshot payloads")

	loadConfig := func(cmd *cobra.Command) (*core.Config, error) {
		return resolveConfig(cmd.Flags(), &cliOverrides, memoryBudget)
	}

	rootCmd.AddCommand(
		newRunCmd(loadConfig),
		newLUTCmd(loadConfig),
		newInspectCmd(loadConfig),
		newRunsCmd(loadConfig),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type configLoader func(cmd *cobra.Command) (*core.Config, error)

// resolveConfig runs the configuration hierarchy:
// defaults -> YAML -> env vars -> explicit CLI flags -> validation.
func resolveConfig(flags *pflag.FlagSet, cliOverrides *core.CLIOverrides, memoryBudget string) (*core.Config, error) {
	// Resolve config path: --config flag > STDPCORE_CONFIG env var
	configPath := ""
	if cliOverrides.ConfigPath != nil && *cliOverrides.ConfigPath != "" {
		configPath = *cliOverrides.ConfigPath
	} else {
		configPath = os.Getenv("STDPCORE_CONFIG")
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI flag overrides (only flags that were explicitly set)
	if err := applyExplicitFlags(flags, cfg, cliOverrides, memoryBudget); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyExplicitFlags applies only the CLI flags that were explicitly set
// by the user on the command line. Unset flags are ignored so they do not
// override values resolved from YAML or environment variables.
func applyExplicitFlags(flags *pflag.FlagSet, cfg *core.Config, o *core.CLIOverrides, memoryBudget string) error {
	overrides := core.CLIOverrides{}

	if flags.Changed("rule") {
		overrides.Rule = o.Rule
	}
	if flags.Changed("acc-depression") {
		overrides.AccumulatorDepression = o.AccumulatorDepression
	}
	if flags.Changed("acc-potentiation") {
		overrides.AccumulatorPotentiation = o.AccumulatorPotentiation
	}
	if flags.Changed("pre-window") {
		overrides.PreWindowLength = o.PreWindowLength
	}
	if flags.Changed("post-window") {
		overrides.PostWindowLength = o.PostWindowLength
	}
	if flags.Changed("alpha") {
		overrides.Alpha = o.Alpha
	}
	if flags.Changed("cores") {
		overrides.Cores = o.Cores
	}
	if flags.Changed("memory-budget") {
		var b datasize.ByteSize
		if err := b.UnmarshalText([]byte(memoryBudget)); err != nil {
			return fmt.Errorf("invalid --memory-budget %q: %w", memoryBudget, err)
		}
		overrides.MemoryBudget = &b
	}
	if flags.Changed("runtime-log") {
		overrides.RuntimeLog = o.RuntimeLog
	}
	if flags.Changed("storage") {
		overrides.StorageBackend = o.StorageBackend
	}
	if flags.Changed("data-path") {
		overrides.DataPath = o.DataPath
	}
	if flags.Changed("compress") {
		overrides.Compress = o.Compress
	}

	cfg.ApplyCLIOverrides(&overrides)
	return nil
}

// registryPath is where the run registry lives for a storage setup, or ""
// when runs are not recorded.
func registryPath(st core.StorageConfig) string {
	switch st.Backend {
	case "memory":
		return ""
	case "sqlite":
		return filepath.Dir(st.DataPath)
	default:
		return st.DataPath
	}
}

var errNoRegistry = errors.New("the memory backend keeps no run registry")
