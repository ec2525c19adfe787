package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/persistence"
	"github.com/denizumutdereli/stdpcore/pkg/registry"
)

func newRunsCmd(load configLoader) *cobra.Command {
	openRegistry := func(cmd *cobra.Command) (*core.Config, *registry.Store, error) {
		cfg, err := load(cmd)
		if err != nil {
			return nil, nil, err
		}
		path := registryPath(cfg.Storage)
		if path == "" {
			return nil, nil, errNoRegistry
		}
		reg, err := registry.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run registry: %w", err)
		}
		return cfg, reg, nil
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRULE\tCORES\tSTATUS\tCREATED")
			for _, e := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.ID, e.Rule, e.Cores, e.Status, humanize.Time(e.CreatedAt))
			}
			return w.Flush()
		},
	}

	runsCmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			e, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %s\n", e.ID)
			fmt.Fprintf(out, "rule:    %s\n", e.Rule)
			fmt.Fprintf(out, "cores:   %d\n", e.Cores)
			fmt.Fprintf(out, "status:  %s\n", e.Status)
			fmt.Fprintf(out, "created: %s (%s)\n", e.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(e.CreatedAt))
			fmt.Fprintf(out, "updated: %s\n", humanize.Time(e.UpdatedAt))
			for k, v := range e.Metadata {
				fmt.Fprintf(out, "%s: %s\n", k, v)
			}
			return nil
		},
	})

	runsCmd.AddCommand(&cobra.Command{
		Use:   "rm <run-id>",
		Short: "Delete a run and its snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			if _, err := reg.Get(args[0]); err != nil {
				return err
			}
			store, err := persistence.Open(cmd.Context(), cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := reg.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
			return nil
		},
	})

	return runsCmd
}
