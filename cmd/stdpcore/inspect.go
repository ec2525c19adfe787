package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/persistence"
)

func newInspectCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run-id> [core]",
		Short: "Show the persisted rows and post histories of a run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := persistence.Open(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer store.Close()

			var ids []int
			if len(args) == 2 {
				id, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid core %q: %w", args[1], err)
				}
				ids = []int{id}
			} else if ids, err = store.List(ctx, args[0]); err != nil {
				return err
			}

			for _, id := range ids {
				snap, err := store.Load(ctx, args[0], id)
				if err != nil {
					return err
				}
				if err := printSnapshot(cmd.OutOrStdout(), cfg, snap); err != nil {
					return fmt.Errorf("core %d: %w", id, err)
				}
			}
			return nil
		},
	}
}

// printSnapshot restores snap into a scratch processor so the report shows
// exactly what a resumed core would hold.
func printSnapshot(out io.Writer, cfg *core.Config, snap *persistence.Snapshot) error {
	st := snap.State
	if st == nil {
		return fmt.Errorf("snapshot has no state")
	}

	ruleCfg := *cfg
	ruleCfg.Rule.Name = st.Rule
	blob, err := engine.BuildBlob(&ruleCfg)
	if err != nil {
		return err
	}
	rule, err := engine.LoadRule(blob, nil)
	if err != nil {
		return err
	}
	p, err := engine.NewProcessor(rule, engine.Options{
		NumNeurons:      len(st.Posts),
		NumSynapseTypes: blob.NumTypes,
	})
	if err != nil {
		return err
	}
	if err := p.Restore(st); err != nil {
		return err
	}

	fmt.Fprintf(out, "== run %s core %d (%s), saved %s\n",
		snap.RunID, snap.CoreID, st.Rule, humanize.Time(time.Unix(snap.SavedAt, 0)))
	fmt.Fprintln(out, p.MemoryReport())
	fmt.Fprintf(out, "Spikes: pre=%s post=%s unrouted=%s\n",
		humanize.Comma(int64(st.Stats.PreSpikes)),
		humanize.Comma(int64(st.Stats.PostSpikes)),
		humanize.Comma(int64(st.Stats.UnroutedPreSpikes)))

	layout := rule.Layout()
	for _, id := range p.RowIDs() {
		row, _ := p.Row(id)
		fmt.Fprintf(out, "row n%d (last pre @%d, trace %d)\n", row.Pre, row.Header.LastPreTime, row.Header.LastPreTrace)
		for _, syn := range row.Synapses {
			fmt.Fprintf(out, "  -> n%d type %d: %s\n", syn.Target, syn.Type, layout.Describe(syn.Word))
		}
	}
	for n := 0; n < p.NumNeurons(); n++ {
		h, _ := p.PostHistory(core.NeuronID(n))
		if h.Len() <= 1 {
			continue
		}
		fmt.Fprintf(out, "post n%d: %v\n", n, h.Entries())
	}
	return nil
}
