package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	memoryBudget string
	profileMode  string
	profileDir   string
)

var buildCmd = &cobra.Command{
	Use:   "build <genome> <track.bedgraph>...",
	Short: "Build a cached array from bedGraph tracks",
	Long: `Build a genomic array and fill one condition per bedGraph track.

The genome argument gives the chromosome lengths: a chrom.sizes table, a
FASTA index (.fai) or a BAM file whose header lists the references.

A cached array with the same tags is reused instead of rebuilt unless
--overwrite is given. Without --conditions, conditions are named after the
track files.

Examples:
  genomicarray build hg38.chrom.sizes ctrl.bedgraph treated.bedgraph --tags cov
  genomicarray build genome.fa.fai sample.bedgraph.gz --resolution 50 --unstranded
  genomicarray build hg38.chrom.sizes a.bg --cache-dir s3://bucket/arrays --tags a`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileMode != "" {
			p, err := profileOption(profileMode)
			if err != nil {
				return err
			}
			defer profile.Start(p, profile.ProfilePath(profileDir), profile.Quiet).Stop()
		}

		lengths, err := genomics.LoadChromLengths(args[0])
		if err != nil {
			return fmt.Errorf("failed to read chromosome lengths: %w", err)
		}
		tracks := args[1:]
		if !cmd.Flags().Changed("conditions") {
			conditions = conditionNames(tracks)
		}

		kind, cfg, err := storeConfig()
		if err != nil {
			return err
		}
		if memoryBudget != "" {
			if cfg.MemoryBudget, err = genomicarray.ParseSize(memoryBudget); err != nil {
				return fmt.Errorf("invalid memory budget: %w", err)
			}
		}

		store, err := genomicarray.Create[value](kind, lengths, cfg, genomicarray.BedGraphLoader[value](tracks...))
		if err != nil {
			return fmt.Errorf("failed to build store: %w", err)
		}
		defer store.Close()

		fields := logrus.Fields{
			"kind":        store.Kind(),
			"chromosomes": len(store.Chromosomes()),
			"conditions":  strings.Join(store.Conditions(), ","),
		}
		if l, ok := store.(interface{ Location() string }); ok {
			fields["path"] = l.Location()
		}
		logrus.WithFields(fields).Info("store ready")
		return nil
	},
}

func init() {
	addStoreFlags(buildCmd)
	buildCmd.Flags().BoolVar(&overwrite, "overwrite", false,
		"Rebuild even when a cached array exists")
	buildCmd.Flags().StringVar(&memoryBudget, "memory", "",
		"Memory budget for the build (e.g. 8G) - default: available RAM")
	buildCmd.Flags().StringVar(&profileMode, "profile", "",
		"Write a profile of the build: cpu, mem")
	buildCmd.Flags().StringVar(&profileDir, "profile-dir", ".",
		"Directory for profile output")
}

func profileOption(mode string) (func(*profile.Profile), error) {
	switch strings.ToLower(mode) {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	}
	return nil, fmt.Errorf("unknown profile mode %q (expected cpu or mem)", mode)
}

// conditionNames names each track after its file, without the
// .bedgraph/.bg and .gz extensions.
func conditionNames(tracks []string) []string {
	names := make([]string, len(tracks))
	for i, track := range tracks {
		name := strings.TrimSuffix(filepath.Base(track), ".gz")
		name = strings.TrimSuffix(name, filepath.Ext(name))
		names[i] = name
	}
	return names
}
