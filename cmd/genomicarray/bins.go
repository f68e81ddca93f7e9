package main

import (
	"fmt"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomicindexer"
	"github.com/spf13/cobra"
)

var (
	binsize      int
	stepsize     int
	flank        int
	keepPartial  bool
	includeChrom []string
	excludeChrom []string
	countBins    bool
)

var binsCmd = &cobra.Command{
	Use:   "bins <regions.bed>",
	Short: "Cut BED regions into fixed-size bins",
	Long: `Cut every region of a BED file into bins of --binsize base pairs,
starting a new bin every --stepsize base pairs, and print one bin per line.

Bins keep the strand of their region. With --flank every bin is widened on
both sides.

Examples:
  genomicarray bins peaks.bed --binsize 200
  genomicarray bins peaks.bed --binsize 200 --stepsize 50 --flank 100
  genomicarray bins peaks.bed.gz --binsize 1000 --chrom chr1,chr2 --count`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step := stepsize
		if step == 0 {
			step = binsize
		}

		idx, err := genomicindexer.FromBED(args[0], binsize, step,
			genomicindexer.WithFlank(flank),
			genomicindexer.WithFixedSizeBatches(!keepPartial))
		if err != nil {
			return fmt.Errorf("failed to index regions: %w", err)
		}

		positions := idx.IndicesByChromosome(includeChrom, excludeChrom)
		if countBins {
			fmt.Println(len(positions))
			return nil
		}

		for _, i := range positions {
			iv, err := idx.At(i)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%d\t%d\t%d\t.\t%s\n", iv.Chrom, iv.Start, iv.End, i, iv.Strand)
		}
		return nil
	},
}

func init() {
	binsCmd.Flags().IntVar(&binsize, "binsize", 200,
		"Bin length in base pairs")
	binsCmd.Flags().IntVar(&stepsize, "stepsize", 0,
		"Offset between consecutive bins (default: binsize)")
	binsCmd.Flags().IntVar(&flank, "flank", 0,
		"Base pairs added to both sides of every bin")
	binsCmd.Flags().BoolVar(&keepPartial, "keep-partial", false,
		"Keep a shorter trailing bin at the end of each region")
	binsCmd.Flags().StringSliceVar(&includeChrom, "chrom", nil,
		"Only print bins on these chromosomes")
	binsCmd.Flags().StringSliceVar(&excludeChrom, "exclude", nil,
		"Skip bins on these chromosomes")
	binsCmd.Flags().BoolVar(&countBins, "count", false,
		"Only print the number of bins")
}
