package main

import (
	"fmt"
	"strings"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the layout of a cached array",
	Long: `Display the layout of a cached genomic array: its conditions, resolution,
strandedness and the shape of every chromosome.

The array is selected with the same --tags, --storage and --cache-dir flags
used to build it.

Example:
  genomicarray stats --tags cov`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Println("===========================================")
		fmt.Println("Genomic Array")
		fmt.Println("===========================================")
		fmt.Println()
		if s, ok := store.(*genomicarray.PersistentStore[value]); ok {
			meta := s.Metadata()
			fmt.Printf("Format: %s v%s\n", meta.Format, meta.Version)
			fmt.Printf("Created: %s\n", meta.Created.Format("2006-01-02 15:04:05"))
			fmt.Printf("Created by: %s\n", meta.CreatedBy)
			fmt.Printf("Location: %s\n", s.Location())
		}
		if s, ok := store.(*genomicarray.MemoryStore[value]); ok {
			fmt.Printf("Location: %s\n", s.Location())
		}
		fmt.Println()

		fmt.Println("Layout:")
		fmt.Printf("  Storage: %s\n", store.Kind())
		fmt.Printf("  Conditions: %s\n", strings.Join(store.Conditions(), ", "))
		fmt.Printf("  Resolution: %d bp\n", store.Resolution())
		fmt.Printf("  Order: %d\n", store.Order())
		fmt.Printf("  Stranded: %v\n", store.Stranded())
		fmt.Println()

		var cells int
		fmt.Println("Chromosomes:")
		fmt.Printf("  %-20s %12s %8s %10s\n", "Name", "Rows", "Strands", "Conditions")
		for _, chrom := range store.Chromosomes() {
			shape, err := store.Shape(chrom)
			if err != nil {
				return err
			}
			cells += shape.Len()
			fmt.Printf("  %-20s %12d %8d %10d\n", chrom, shape.Rows, shape.Strands, shape.Conditions)
		}
		fmt.Println()
		fmt.Printf("Total cells: %d (%s as float64)\n", cells, genomicarray.FormatSize(int64(cells)*8))
		return nil
	},
}

func init() {
	addStoreFlags(statsCmd)
}
