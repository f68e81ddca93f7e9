package genomicarray

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray/mocks"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyDir(cfg *Config) string {
	return filepath.Join(cfg.CacheDir, filepath.FromSlash(cacheKey(cfg.DataTags, cfg.Stranded)))
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func writeValue(v float64) Loader[float64] {
	return func(s Store[float64], _ ...any) error {
		return s.Write(iv("chr1", 0, 10, genomics.StrandForward), 0, v)
	}
}

func TestPersistentReuseSkipsLoader(t *testing.T) {
	cfg, hook := testConfig(t)

	calls := 0
	loader := func(s Store[float64], args ...any) error {
		calls++
		assert.Equal(t, []any{"extra", 3}, args)
		return s.Write(iv("chr1", 0, 10, genomics.StrandForward), 0, 1.5)
	}

	first, err := NewPersistentStore[float64](testLengths, cfg, loader, "extra", 3)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, 1, calls)
	assert.True(t, hasEntry(hook, logrus.InfoLevel, "create"))

	hook.Reset()
	second, err := NewPersistentStore[float64](testLengths, cfg, loader, "extra", 3)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, 1, calls)
	assert.True(t, hasEntry(hook, logrus.InfoLevel, "reload"))
	assert.False(t, hasEntry(hook, logrus.WarnLevel, "cached store differs from requested configuration, using cached layout"))

	got, err := second.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 1.5), got)

	assert.Equal(t, []string{"storage"}, dirNames(t, keyDir(cfg)))
	assert.Equal(t, []string{"_metadata.json", "data"}, dirNames(t, filepath.Join(keyDir(cfg), "storage")))
}

func TestPersistentLoaderSeesBuildingStore(t *testing.T) {
	cfg, _ := testConfig(t)
	store, err := NewPersistentStore[float64](testLengths, cfg, func(s Store[float64], _ ...any) error {
		ps, ok := s.(*PersistentStore[float64])
		require.True(t, ok)
		assert.Equal(t, stateBuilding, ps.state)
		return nil
	})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, stateSealed, store.state)
	assert.Nil(t, store.building)

	err = store.Write(iv("chr1", 0, 10, genomics.StrandForward), 0, 1)
	assert.True(t, errors.Is(err, ErrReadOnly), "got %v", err)
}

func TestPersistentOverwrite(t *testing.T) {
	cfg, _ := testConfig(t)

	first, err := NewPersistentStore[float64](testLengths, cfg, writeValue(1))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	cfg.Overwrite = true
	calls := 0
	second, err := NewPersistentStore[float64](testLengths, cfg, func(s Store[float64], args ...any) error {
		calls++
		return writeValue(2)(s, args...)
	})
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, 1, calls)

	got, err := second.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 2), got)

	// neither staging nor the replaced cache is left behind
	assert.Equal(t, []string{"storage"}, dirNames(t, keyDir(cfg)))
}

func TestPersistentLoaderErrorLeavesNoCache(t *testing.T) {
	cfg, _ := testConfig(t)
	boom := errors.New("boom")

	_, err := NewPersistentStore[float64](testLengths, cfg, func(s Store[float64], _ ...any) error {
		return boom
	})
	assert.True(t, errors.Is(err, boom), "got %v", err)
	assert.Empty(t, dirNames(t, keyDir(cfg)))

	_, err = OpenPersistent[float64](cfg)
	assert.True(t, errors.Is(err, ErrNotCached), "got %v", err)
}

func TestPersistentLayoutWinsOnReload(t *testing.T) {
	cfg, hook := testConfig(t)
	cfg.Conditions = []string{"a", "b"}

	first, err := NewPersistentStore[float64](testLengths, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	hook.Reset()
	cfg.Conditions = []string{"x"}
	cfg.Resolution = 5
	second, err := NewPersistentStore[float64](testLengths, cfg, func(Store[float64], ...any) error {
		t.Fatal("loader must not run on reload")
		return nil
	})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, []string{"a", "b"}, second.Conditions())
	assert.Equal(t, 1, second.Resolution())
	require.True(t, hasEntry(hook, logrus.WarnLevel, "cached store differs from requested configuration, using cached layout"))
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			assert.Equal(t, "conditions,resolution", e.Data["mismatch"])
		}
	}

	cfg.StrictReload = true
	_, err = NewPersistentStore[float64](testLengths, cfg, nil)
	assert.True(t, errors.Is(err, ErrConfigMismatch), "got %v", err)
}

func TestPersistentChromosomeMismatch(t *testing.T) {
	cfg, _ := testConfig(t)
	first, err := NewPersistentStore[float64](testLengths, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	cfg.StrictReload = true
	_, err = NewPersistentStore[float64](genomics.ChromLengths{"chr1": 100}, cfg, nil)
	assert.True(t, errors.Is(err, ErrConfigMismatch), "got %v", err)

	// no lengths means no comparison
	_, err = NewPersistentStore[float64](nil, cfg, nil)
	assert.NoError(t, err)
}

func TestPersistentDtypeMismatch(t *testing.T) {
	cfg, _ := testConfig(t)
	first, err := NewPersistentStore[float64](testLengths, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = NewPersistentStore[int32](testLengths, cfg, nil)
	assert.True(t, errors.Is(err, ErrDtypeMismatch), "got %v", err)
	_, err = OpenPersistent[int32](cfg)
	assert.True(t, errors.Is(err, ErrDtypeMismatch), "got %v", err)
}

func TestPersistentRequiresCache(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Cache = false

	_, err := NewPersistentStore[float64](testLengths, cfg, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
	assert.Empty(t, dirNames(t, cfg.CacheDir))
}

func TestPersistentInvalidConfig(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"order zero", func(c *Config) { c.Order = 0 }},
		{"order five", func(c *Config) { c.Order = 5 }},
		{"zero resolution", func(c *Config) { c.Resolution = 0 }},
		{"duplicate condition", func(c *Config) { c.Conditions = []string{"a", "a"} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _ := testConfig(t)
			tc.modify(cfg)
			called := false
			_, err := NewPersistentStore[float64](testLengths, cfg, func(Store[float64], ...any) error {
				called = true
				return nil
			})
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
			assert.False(t, called)
		})
	}
}

func TestPersistentCorruptChunk(t *testing.T) {
	cfg, _ := testConfig(t)
	first, err := NewPersistentStore[float64](testLengths, cfg, writeValue(1))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	chunk := filepath.Join(keyDir(cfg), "storage", "data", "chr1.chunk")
	data, err := os.ReadFile(chunk)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(chunk, append(data, 0), 0644))

	store, err := OpenPersistent[float64](cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	assert.True(t, errors.Is(err, ErrCorruptCache), "got %v", err)

	_, err = store.Read(iv("chr2", 0, 10, genomics.StrandForward), 0)
	assert.NoError(t, err)
}

func TestPersistentIncompleteCacheIsRebuilt(t *testing.T) {
	cfg, hook := testConfig(t)
	leftover := filepath.Join(keyDir(cfg), "storage", "data")
	require.NoError(t, os.MkdirAll(leftover, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "chr1.chunk"), []byte("partial"), 0644))

	calls := 0
	store, err := NewPersistentStore[float64](testLengths, cfg, func(s Store[float64], args ...any) error {
		calls++
		return writeValue(4)(s, args...)
	})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 1, calls)
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "removing incomplete cache"))
	got, err := store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 4), got)
}

func TestPersistentConcurrentCommitReusesWinner(t *testing.T) {
	cfg, hook := testConfig(t)

	// the loader itself commits a competing build of the same cache
	store, err := NewPersistentStore[float64](testLengths, cfg, func(s Store[float64], _ ...any) error {
		winner, err := NewPersistentStore[float64](testLengths, cfg, writeValue(9))
		if err != nil {
			return err
		}
		winner.Close()
		return writeValue(1)(s)
	})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 9), got)
	assert.True(t, hasEntry(hook, logrus.InfoLevel, "cache committed concurrently, discarding local build"))
	assert.Equal(t, []string{"storage"}, dirNames(t, keyDir(cfg)))
}

func TestOpenPersistent(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Compression = "none"

	_, err := OpenPersistent[float64](cfg)
	assert.True(t, errors.Is(err, ErrNotCached), "got %v", err)

	first, err := NewPersistentStore[float64](testLengths, cfg, writeValue(3))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	store, err := OpenPersistent[float64](cfg)
	require.NoError(t, err)
	defer store.Close()

	meta := store.Metadata()
	assert.Equal(t, "genomicarray", meta.Format)
	assert.Equal(t, "<f8", meta.Dtype)
	assert.Equal(t, []string{"unit"}, meta.Tags)
	assert.Equal(t, "none", meta.Compression.Algorithm)
	require.Len(t, meta.Chunks, 2)
	assert.Equal(t, "chr1", meta.Chunks[0].Chromosome)
	assert.Equal(t, "data/chr1.chunk", meta.Chunks[0].Path)
	assert.Equal(t, Shape{Rows: 101, Strands: 2, Conditions: 1}, meta.Chunks[0].Shape)
	assert.Len(t, meta.Chunks[0].Checksum, 64)

	got, err := store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 3), got)
	assert.Equal(t, 1, store.cache.ItemCount())

	raw, err := os.ReadFile(filepath.Join(keyDir(cfg), "storage", "_metadata.json"))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "<f8", onDisk["dtype"])
	assert.Equal(t, true, onDisk["stranded"])
}

func TestPersistentChunkCacheExpires(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.ChunkCacheTTL = time.Millisecond

	store, err := NewPersistentStore[float64](testLengths, cfg, writeValue(5))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, ok := store.cache.Get("chr1")
	assert.False(t, ok)

	got, err := store.Read(iv("chr1", 0, 10, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, filled(10, 5), got)
}

func TestParallelChunkWritersKeepOrder(t *testing.T) {
	lengths := genomics.ChromLengths{}
	for i := 1; i <= 12; i++ {
		lengths[fmt.Sprintf("chr%d", i)] = 10 * i
	}

	cfg, _ := testConfig(t)
	cfg.Workers = 4
	store, err := NewPersistentStore[float64](lengths, cfg, func(s Store[float64], _ ...any) error {
		for _, chrom := range s.Chromosomes() {
			if err := s.Write(iv(chrom, 0, 10, genomics.StrandForward), 0, 1); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	defer store.Close()

	meta := store.Metadata()
	require.Len(t, meta.Chunks, len(lengths))
	for i, chunk := range meta.Chunks {
		assert.Equal(t, store.Chromosomes()[i], chunk.Chromosome)
		assert.Equal(t, lengths[chunk.Chromosome], chunk.Length)
	}

	got, err := store.Read(iv("chr12", 0, 12, genomics.StrandForward), 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0}, got)
}

func TestPersistentWriteFailureRemovesStaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStorage(ctrl)
	cfg, _ := testConfig(t)
	cfg.Storage = st

	st.EXPECT().GetBasePath().Return("mock://cache").AnyTimes()
	st.EXPECT().Exists("unit/stranded/storage/_metadata.json").Return(false, nil)
	st.EXPECT().Exists("unit/stranded/storage").Return(false, nil)
	cfg.Workers = 2
	// the second chunk may already be in flight when the first fails
	st.EXPECT().WriteFile(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).MinTimes(1).MaxTimes(2)
	st.EXPECT().RemoveAll(gomock.Any()).DoAndReturn(func(path string) error {
		assert.True(t, strings.HasPrefix(path, "unit/stranded/.storage-"), path)
		return nil
	})

	_, err := NewPersistentStore[float64](testLengths, cfg, writeValue(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPersistentRenameFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStorage(ctrl)
	cfg, _ := testConfig(t)
	cfg.Storage = st

	st.EXPECT().GetBasePath().Return("mock://cache").AnyTimes()
	st.EXPECT().Exists("unit/stranded/storage/_metadata.json").Return(false, nil).Times(3)
	st.EXPECT().Exists("unit/stranded/storage").Return(false, nil)
	st.EXPECT().WriteFile(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	st.EXPECT().Rename(gomock.Any(), "unit/stranded/storage").Return(errors.New("permission denied"))
	st.EXPECT().RemoveAll(gomock.Any()).Return(nil)

	_, err := NewPersistentStore[float64](testLengths, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
