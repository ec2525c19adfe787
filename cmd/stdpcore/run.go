package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/denizumutdereli/stdpcore/pkg/concurrency"
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/persistence"
	"github.com/denizumutdereli/stdpcore/pkg/protocol"
	"github.com/denizumutdereli/stdpcore/pkg/registry"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

func newRunCmd(load configLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Play a spike scenario on the configured rule and persist the cores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			sc, err := protocol.LoadScenario(args[0])
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), cfg, sc, args[0], cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func runScenario(ctx context.Context, cfg *core.Config, sc *protocol.Scenario, source string, out io.Writer, asJSON bool) error {
	timing.SetRuntimeLog(cfg.Simulation.RuntimeLog)

	if n := sc.NumCores(); n > cfg.Simulation.Cores {
		return fmt.Errorf("scenario uses %d cores, simulation.cores is %d", n, cfg.Simulation.Cores)
	}

	blob, err := engine.BuildBlob(cfg)
	if err != nil {
		return err
	}
	log.Printf("Rule %s: %d region words (%s)", blob.Kind, blob.Words(), humanize.Bytes(uint64(blob.Words())*4))

	store, err := persistence.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	var reg *registry.Store
	runID := uuid.New().String()
	if path := registryPath(cfg.Storage); path != "" {
		reg, err = registry.NewStore(path)
		if err != nil {
			return fmt.Errorf("failed to open run registry: %w", err)
		}
		entry, err := reg.Create(blob.Kind.String(), cfg.Simulation.Cores, map[string]string{"scenario": source})
		if err != nil {
			return fmt.Errorf("failed to register run: %w", err)
		}
		runID = entry.ID
	}
	log.Printf("Run %s: %d cores, %s backend", runID, cfg.Simulation.Cores, cfg.Storage.Backend)

	pool, err := concurrency.NewPool(concurrency.PoolOptions{
		RunID:     runID,
		Blob:      blob,
		Rule:      cfg.Rule,
		Cores:     cfg.Simulation.Cores,
		Neurons:   sc.Neurons,
		QueueSize: cfg.Simulation.QueueSize,
		Budget:    cfg.Simulation.MemoryBudget,
	}, store)
	if err != nil {
		setStatus(reg, runID, registry.StatusFailed)
		return err
	}
	setStatus(reg, runID, registry.StatusRunning)

	res, runErr := protocol.NewExecutor(blob.Kind.Layout()).Execute(ctx, pool, sc)

	// Persist even when the context was canceled by a signal.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Printf("Pool shutdown error: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		setStatus(reg, runID, registry.StatusFailed)
	} else {
		setStatus(reg, runID, registry.StatusCompleted)
	}
	if res == nil {
		return runErr
	}

	if asJSON {
		data, err := protocol.MarshalResult(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return runErr
	}
	printResult(out, runID, blob.Kind, res)
	return runErr
}

func setStatus(reg *registry.Store, runID string, status registry.Status) {
	if reg == nil {
		return
	}
	if _, err := reg.SetStatus(runID, status); err != nil {
		log.Printf("⚠ failed to record run %s as %s: %v", runID, status, err)
	}
}

func printResult(out io.Writer, runID string, kind timing.Kind, res *protocol.Result) {
	fmt.Fprintf(out, "Run %s (%s): %s events on %d cores in %s\n",
		runID, kind, humanize.Comma(int64(res.Events)), len(res.Cores), res.Elapsed.Round(time.Microsecond))
	for _, c := range res.Cores {
		fmt.Fprintf(out, "core %d: pre=%s post=%s unrouted=%s updates=%s replays=%s\n", c.ID,
			humanize.Comma(int64(c.Stats.PreSpikes)),
			humanize.Comma(int64(c.Stats.PostSpikes)),
			humanize.Comma(int64(c.Stats.UnroutedPreSpikes)),
			humanize.Comma(int64(c.Stats.SynapseUpdates)),
			humanize.Comma(int64(c.Stats.PostReplays)))
		for _, s := range c.Synapses {
			fmt.Fprintf(out, "  n%d -> n%d\t%s\n", s.Pre, s.Target, s.Word)
		}
	}
	if !res.Success {
		fmt.Fprintf(out, "FAILED: %s\n", res.Error)
	}
}
