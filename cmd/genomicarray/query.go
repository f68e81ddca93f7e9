package main

import (
	"fmt"
	"strconv"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/spf13/cobra"
)

var (
	queryCondition string
	allConditions  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <region>",
	Short: "Print array values over a region",
	Long: `Print the cells of a cached array that cover a region.

The region format is chr:start-end with an optional strand suffix
(e.g., chr1:1000-2000 or chr1:1000-2000:-). One line is printed per cell,
starting at the cell holding the region start.

Only the chunk of the queried chromosome is loaded.

Examples:
  genomicarray query chr1:1000-2000 --tags cov
  genomicarray query chr1:1000-2000:- --tags cov --condition treated
  genomicarray query chr1:1000-2000 --tags cov --all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iv, err := genomics.ParseInterval(args[0])
		if err != nil {
			return fmt.Errorf("invalid region: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		names := store.Conditions()
		selected := []int{}
		if allConditions {
			for i := range names {
				selected = append(selected, i)
			}
		} else {
			i, err := lookupCondition(names, queryCondition)
			if err != nil {
				return err
			}
			selected = append(selected, i)
		}

		columns := make([][]value, len(selected))
		for j, cond := range selected {
			if columns[j], err = store.Read(iv, cond); err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
		}

		fmt.Printf("%-12s", "start")
		for _, cond := range selected {
			fmt.Printf(" %12s", names[cond])
		}
		fmt.Println()

		res := store.Resolution()
		first := iv.Start - iv.Start%res
		if iv.Start < 0 {
			first = 0
		}
		for row := range columns[0] {
			fmt.Printf("%-12d", first+row*res)
			for j := range columns {
				fmt.Printf(" %12g", columns[j][row])
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	addStoreFlags(queryCmd)
	queryCmd.Flags().StringVar(&queryCondition, "condition", "0",
		"Condition to print, by name or index")
	queryCmd.Flags().BoolVar(&allConditions, "all", false,
		"Print every condition")
}

// lookupCondition resolves a condition given by name or by index.
func lookupCondition(names []string, s string) (int, error) {
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= len(names) {
		return 0, fmt.Errorf("unknown condition %q (have %v)", s, names)
	}
	return i, nil
}
