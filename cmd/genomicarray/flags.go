package main

import (
	"fmt"
	"strings"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Store values are always float64 on the command line.
type value = float64

var (
	storageKind string
	cacheDir    string
	dataTags    []string
	conditions  []string
	resolution  int
	order       int
	unstranded  bool
	overwrite   bool
	compression string
	strict      bool
)

// addStoreFlags registers the flags that select and configure a store.
func addStoreFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&storageKind, "storage", string(genomicarray.KindPersistent),
		"Storage kind: persistent, in_memory")
	fs.StringVar(&cacheDir, "cache-dir", genomicarray.DefaultCacheDir(),
		"Cache directory (local path or s3://bucket/prefix)")
	fs.StringSliceVar(&dataTags, "tags", nil,
		"Data tags naming the cache entry (e.g. --tags project,cov)")
	fs.StringSliceVar(&conditions, "conditions", []string{"sample"},
		"Condition names, one per bedGraph input")
	fs.IntVar(&resolution, "resolution", 1,
		"Base pairs per array cell")
	fs.IntVar(&order, "order", 1,
		"Sequence feature order recorded with the array (1-4)")
	fs.BoolVar(&unstranded, "unstranded", false,
		"Store a single strand instead of forward and reverse")
	fs.StringVar(&compression, "compression", "zstd",
		"Compression algorithm: none, zstd")
	fs.BoolVar(&strict, "strict", false,
		"Fail instead of warning when the cached layout differs from the flags")
}

// storeConfig turns the store flags into a genomicarray.Config.
func storeConfig() (genomicarray.StorageKind, *genomicarray.Config, error) {
	kind, err := genomicarray.ParseStorageKind(storageKind)
	if err != nil {
		return "", nil, err
	}

	cfg := genomicarray.NewConfig()
	cfg.Stranded = !unstranded
	cfg.Conditions = conditions
	cfg.Resolution = resolution
	cfg.Order = order
	cfg.DataTags = dataTags
	cfg.Overwrite = overwrite
	cfg.CacheDir = cacheDir
	cfg.Compression = strings.ToLower(compression)
	cfg.StrictReload = strict
	cfg.Logger = logrus.StandardLogger()
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return kind, cfg, nil
}

// openStore reopens a previously built store from the flags.
func openStore() (genomicarray.Store[value], error) {
	kind, cfg, err := storeConfig()
	if err != nil {
		return nil, err
	}
	store, err := genomicarray.Open[value](kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}
