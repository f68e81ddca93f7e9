package genomicarray

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps every chromosome array in process. With caching
// enabled it is snapshotted to a single archive file after the loader
// runs, and later constructions read the archive instead.
type MemoryStore[T Number] struct {
	base[T]

	cfg     *Config
	log     logrus.FieldLogger
	storage Storage
	archive string
	grids   map[string]*grid[T]
}

var _ Store[float64] = (*MemoryStore[float64])(nil)

// NewMemoryStore builds the store with loader, or reads it from the
// archive identified by cfg.DataTags when caching is enabled, the archive
// exists and cfg.Overwrite is not set.
func NewMemoryStore[T Number](lengths genomics.ChromLengths, cfg *Config, loader Loader[T], args ...any) (*MemoryStore[T], error) {
	s, err := newMemory[T](cfg)
	if err != nil {
		return nil, err
	}
	if err := lengths.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if s.storage != nil && !s.cfg.Overwrite {
		exists, err := s.storage.Exists(s.archive)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache %s: %w", s.Location(), err)
		}
		if exists {
			l, err := s.load()
			if err == nil {
				err = reconcile(s.log, s.cfg, s.cfg.layout(lengths), l, s.Location())
			}
			if err != nil {
				return nil, err
			}
			s.log.WithField("path", s.Location()).Info("reload")
			return s, nil
		}
	}

	s.init(KindInMemory, s.cfg.Stranded, s.cfg.Conditions, s.cfg.Resolution, s.cfg.Order, lengths)
	if err := s.checkShapes(); err != nil {
		return nil, err
	}
	checkMemoryBudget(s.log, EstimateBytes[T](lengths, s.resolution, s.stranded, len(s.conditions)), s.cfg.MemoryBudget)
	s.grids = s.allocate()
	s.lookup = lookupIn(s.grids)
	if s.storage != nil {
		s.log.WithField("path", s.Location()).Info("create")
	}

	if loader != nil {
		if err := loader(s, args...); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	if s.storage != nil {
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenArchive reads an existing archive without chromosome lengths or a
// loader. It returns ErrNotCached when there is none.
func OpenArchive[T Number](cfg *Config) (*MemoryStore[T], error) {
	s, err := newMemory[T](cfg)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, fmt.Errorf("%w: opening an archive requires caching", ErrInvalidConfig)
	}

	exists, err := s.storage.Exists(s.archive)
	if err != nil {
		return nil, fmt.Errorf("failed to check cache %s: %w", s.Location(), err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, s.Location())
	}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	s.log.WithField("path", s.Location()).Info("reload")
	return s, nil
}

func newMemory[T Number](cfg *Config) (*MemoryStore[T], error) {
	c, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	s := &MemoryStore[T]{cfg: c, log: c.Logger}
	s.kind = KindInMemory
	if c.Cache {
		if s.storage, err = c.storage(); err != nil {
			return nil, err
		}
		s.archive = path.Join(cacheKey(c.DataTags, c.Stranded), archiveFile)
	}
	return s, nil
}

// Location returns the archive path, or "memory" without caching.
func (s *MemoryStore[T]) Location() string {
	if s.storage == nil {
		return "memory"
	}
	return strings.TrimSuffix(s.storage.GetBasePath(), "/") + "/" + s.archive
}

func (s *MemoryStore[T]) Write(iv genomics.Interval, condition int, value T) error {
	return s.write(iv, condition, value)
}

// Save snapshots the current values to the archive, replacing it.
func (s *MemoryStore[T]) Save() error {
	if s.closed {
		return ErrClosed
	}
	if s.storage == nil {
		return fmt.Errorf("%w: saving requires caching", ErrInvalidConfig)
	}
	return s.save()
}

func (s *MemoryStore[T]) Close() error {
	s.closed = true
	s.grids = nil
	return nil
}

func (s *MemoryStore[T]) load() (layout, error) {
	data, err := s.storage.ReadFile(s.archive)
	if err != nil {
		return layout{}, fmt.Errorf("failed to read archive: %w", err)
	}
	l, grids, err := decodeArchive[T](data)
	if err != nil {
		return layout{}, fmt.Errorf("failed to decode archive %s: %w", s.Location(), err)
	}
	s.init(KindInMemory, l.Stranded, l.Conditions, l.Resolution, l.Order, l.Lengths)
	s.grids = grids
	s.lookup = lookupIn(s.grids)
	return l, nil
}

// save writes the archive to a private file and renames it into place.
func (s *MemoryStore[T]) save() error {
	compressor, err := NewCompressor(s.cfg.Compression)
	if err != nil {
		return err
	}
	defer compressor.Close()

	l := layout{
		Stranded:   s.stranded,
		Conditions: s.conditions,
		Resolution: s.resolution,
		Order:      s.order,
	}
	data, err := encodeArchive(l, s.grids, compressor)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	staging := path.Join(path.Dir(s.archive), ".storage-"+uuid.NewString()+".gar")
	if err := s.storage.WriteFile(staging, data); err != nil {
		s.storage.RemoveAll(staging)
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := s.storage.Rename(staging, s.archive); err != nil {
		s.storage.RemoveAll(staging)
		return fmt.Errorf("failed to commit archive %s: %w", s.Location(), err)
	}
	return nil
}
