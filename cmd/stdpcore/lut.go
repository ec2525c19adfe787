package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

func newLUTCmd(load configLoader) *cobra.Command {
	var entries int
	var dump bool

	cmd := &cobra.Command{
		Use:   "lut",
		Short: "Generate the region blob of the configured rule and show its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			blob, err := engine.BuildBlob(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			region := engine.BuildRegion(blob.Kind, cfg.Rule)
			printRegion(out, blob, region, entries)
			if dump {
				dumpWords(out, "rule", blob.Rule)
				dumpWords(out, "weight", blob.Weight)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&entries, "entries", "n", 8, "Table entries to preview")
	cmd.Flags().BoolVar(&dump, "dump", false, "Dump the raw region words")
	return cmd
}

func printRegion(out io.Writer, blob *engine.Blob, r *timing.Region, n int) {
	fmt.Fprintf(out, "rule:    %s\n", blob.Kind)
	fmt.Fprintf(out, "layout:  %s\n", blob.Kind.Layout().Name)
	fmt.Fprintf(out, "region:  %d rule words + %d weight words (%s)\n",
		len(blob.Rule), len(blob.Weight), humanize.Bytes(uint64(blob.Words())*4))

	if blob.Kind == timing.KindVogels2011 {
		fmt.Fprintf(out, "alpha:   %d\n", r.Params.Alpha)
	} else {
		fmt.Fprintf(out, "bounds:  %d..%d\n", r.Params.Floor(), r.Params.Ceiling())
	}
	if blob.Kind == timing.KindRecurrentFixed {
		fmt.Fprintf(out, "windows: pre=%d post=%d\n", r.Params.PreWindowLength, r.Params.PostWindowLength)
	}

	previewTable(out, "pre inverse-CDF", r.PreInverse.Table, n)
	previewTable(out, "post inverse-CDF", r.PostInverse.Table, n)
	previewTable(out, "pre CDF", r.PreCDF.Table, n)
	previewTable(out, "post CDF", r.PostCDF.Table, n)
	previewTable(out, "tau", r.Tau.Table, n)
}

func previewTable(out io.Writer, name string, t lut.Table, n int) {
	if t.Len() == 0 {
		return
	}
	e := t.Entries()
	if n > len(e) {
		n = len(e)
	}
	fmt.Fprintf(out, "%s (%s entries): %v", name, humanize.Comma(int64(len(e))), e[:n])
	if n < len(e) {
		fmt.Fprintf(out, " ... %d", e[len(e)-1])
	}
	fmt.Fprintln(out)
}

func dumpWords(out io.Writer, name string, words []uint32) {
	fmt.Fprintf(out, "%s region:\n", name)
	for i, w := range words {
		fmt.Fprintf(out, "%08x", w)
		if i%8 == 7 || i == len(words)-1 {
			fmt.Fprintln(out)
		} else {
			fmt.Fprint(out, " ")
		}
	}
}
