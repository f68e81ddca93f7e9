package genomicarray

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus"
)

type state int

const (
	stateUninitialized state = iota
	stateBuilding
	stateSealed
)

func (s state) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateSealed:
		return "sealed"
	}
	return "uninitialized"
}

// PersistentStore is a store that is built once into a cache directory and
// read back lazily afterwards.
//
// A new store is BUILDING while the loader runs: arrays live in memory and
// are writable. It is then written to a private staging directory that is
// renamed into place, and the store becomes SEALED: chunks are decoded on
// first access, verified against their checksum, kept for ChunkCacheTTL,
// and writes fail with ErrReadOnly.
type PersistentStore[T Number] struct {
	base[T]

	cfg        *Config
	log        logrus.FieldLogger
	storage    Storage
	key        string
	root       string
	state      state
	compressor *Compressor

	building map[string]*grid[T]

	meta   Metadata
	chunks map[string]ChunkInfo
	cache  *gocache.Cache
}

var _ Store[float64] = (*PersistentStore[float64])(nil)

// NewPersistentStore opens the cached store identified by cfg.DataTags, or
// builds it with loader when no cache exists or cfg.Overwrite is set.
//
// On reload the persisted conditions, order, resolution and strandedness
// win over cfg; a difference is logged, or returned as ErrConfigMismatch
// when cfg.StrictReload is set.
func NewPersistentStore[T Number](lengths genomics.ChromLengths, cfg *Config, loader Loader[T], args ...any) (*PersistentStore[T], error) {
	s, err := newPersistent[T](cfg)
	if err != nil {
		return nil, err
	}
	if err := lengths.Validate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	committed, err := s.committed()
	if err != nil {
		s.Close()
		return nil, err
	}

	if committed && !s.cfg.Overwrite {
		meta, err := s.readMetadata()
		if err == nil {
			err = s.reload(meta, lengths)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}

	if err := s.build(lengths, loader, args); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenPersistent reopens an existing cache without chromosome lengths or a
// loader. It returns ErrNotCached when nothing has been committed.
func OpenPersistent[T Number](cfg *Config) (*PersistentStore[T], error) {
	s, err := newPersistent[T](cfg)
	if err != nil {
		return nil, err
	}

	committed, err := s.committed()
	if err == nil && !committed {
		err = fmt.Errorf("%w: %s", ErrNotCached, s.Location())
	}
	var meta Metadata
	if err == nil {
		meta, err = s.readMetadata()
	}
	if err == nil {
		err = s.seal(meta)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.log.WithField("path", s.Location()).Info("reload")
	return s, nil
}

func newPersistent[T Number](cfg *Config) (*PersistentStore[T], error) {
	c, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	if !c.Cache {
		return nil, fmt.Errorf("%w: the persistent store requires caching", ErrInvalidConfig)
	}

	st, err := c.storage()
	if err != nil {
		return nil, err
	}
	compressor, err := NewCompressor(c.Compression)
	if err != nil {
		return nil, err
	}

	key := cacheKey(c.DataTags, c.Stranded)
	s := &PersistentStore[T]{
		cfg:        c,
		log:        c.Logger,
		storage:    st,
		key:        key,
		root:       path.Join(key, storageDir),
		compressor: compressor,
	}
	s.kind = KindPersistent
	return s, nil
}

// Location returns the storage directory of the store.
func (s *PersistentStore[T]) Location() string {
	return strings.TrimSuffix(s.storage.GetBasePath(), "/") + "/" + s.root
}

// Metadata returns the persisted metadata. It is empty until the store is
// sealed.
func (s *PersistentStore[T]) Metadata() Metadata {
	meta := s.meta
	meta.Conditions = append([]string(nil), s.meta.Conditions...)
	meta.Tags = append([]string(nil), s.meta.Tags...)
	meta.Chunks = append([]ChunkInfo(nil), s.meta.Chunks...)
	return meta
}

// Write assigns value to the cells covering iv. Only the loader may write;
// afterwards the store is read-only.
func (s *PersistentStore[T]) Write(iv genomics.Interval, condition int, value T) error {
	if s.closed {
		return ErrClosed
	}
	if s.state != stateBuilding {
		return fmt.Errorf("%w: %s", ErrReadOnly, s.Location())
	}
	return s.write(iv, condition, value)
}

// Close releases decoded chunks. The cache directory is kept.
func (s *PersistentStore[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.building = nil
	if s.cache != nil {
		s.cache.Flush()
	}
	return s.compressor.Close()
}

func (s *PersistentStore[T]) committed() (bool, error) {
	ok, err := s.storage.Exists(path.Join(s.root, metadataFile))
	if err != nil {
		return false, fmt.Errorf("failed to check cache %s: %w", s.Location(), err)
	}
	return ok, nil
}

func (s *PersistentStore[T]) readMetadata() (Metadata, error) {
	var meta Metadata
	data, err := s.storage.ReadFile(path.Join(s.root, metadataFile))
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w: failed to parse metadata: %v", ErrCorruptCache, err)
	}
	if meta.Format != formatName {
		return meta, fmt.Errorf("%w: unexpected format %q", ErrCorruptCache, meta.Format)
	}
	if want := dtypeOf[T](); meta.Dtype != want {
		return meta, fmt.Errorf("%w: cache holds %s, requested %s", ErrDtypeMismatch, meta.Dtype, want)
	}
	return meta, nil
}

func (m Metadata) layout() layout {
	l := layout{
		Stranded:   m.Stranded,
		Conditions: m.Conditions,
		Resolution: m.Resolution,
		Order:      m.Order,
		Lengths:    make(genomics.ChromLengths, len(m.Chunks)),
	}
	for _, chunk := range m.Chunks {
		l.Lengths[chunk.Chromosome] = chunk.Length
	}
	return l
}

func (c *Config) layout(lengths genomics.ChromLengths) layout {
	return layout{
		Stranded:   c.Stranded,
		Conditions: c.Conditions,
		Resolution: c.Resolution,
		Order:      c.Order,
		Lengths:    lengths,
	}
}

// reconcile compares the requested layout with the persisted one.
func reconcile(log logrus.FieldLogger, cfg *Config, requested, persisted layout, location string) error {
	diffs := requested.mismatches(persisted)
	if len(diffs) == 0 {
		return nil
	}
	if cfg.StrictReload {
		return fmt.Errorf("%w: %s differs at %s", ErrConfigMismatch, strings.Join(diffs, ", "), location)
	}
	log.WithFields(logrus.Fields{
		"path":     location,
		"mismatch": strings.Join(diffs, ","),
	}).Warn("cached store differs from requested configuration, using cached layout")
	return nil
}

func (s *PersistentStore[T]) reload(meta Metadata, lengths genomics.ChromLengths) error {
	if err := reconcile(s.log, s.cfg, s.cfg.layout(lengths), meta.layout(), s.Location()); err != nil {
		return err
	}
	if err := s.seal(meta); err != nil {
		return err
	}
	s.log.WithField("path", s.Location()).Info("reload")
	return nil
}

// seal switches the store to lazy reads of the committed chunks.
func (s *PersistentStore[T]) seal(meta Metadata) error {
	if meta.Compression.Algorithm != s.compressor.Algorithm() {
		compressor, err := NewCompressor(meta.Compression.Algorithm)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptCache, err)
		}
		s.compressor.Close()
		s.compressor = compressor
	}

	l := meta.layout()
	s.init(KindPersistent, l.Stranded, l.Conditions, l.Resolution, l.Order, l.Lengths)
	s.meta = meta
	s.chunks = make(map[string]ChunkInfo, len(meta.Chunks))
	for _, chunk := range meta.Chunks {
		s.chunks[chunk.Chromosome] = chunk
	}

	ttl := s.cfg.ChunkCacheTTL
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl, cleanup = gocache.NoExpiration, 0
	}
	s.cache = gocache.New(ttl, cleanup)
	s.lookup = s.loadChunk
	s.state = stateSealed
	return nil
}

func (s *PersistentStore[T]) loadChunk(chrom string) (*grid[T], error) {
	if v, ok := s.cache.Get(chrom); ok {
		return v.(*grid[T]), nil
	}

	info, ok := s.chunks[chrom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChromosome, chrom)
	}

	data, err := s.storage.ReadFile(path.Join(s.root, info.Path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing chunk %s", ErrCorruptCache, info.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %s: %w", info.Path, err)
	}

	hash := sha256.Sum256(data)
	if checksum := hex.EncodeToString(hash[:]); checksum != info.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorruptCache, info.Path)
	}

	g, err := decodeChunk[T](data, s.compressor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chunk %s: %w", info.Path, err)
	}
	if g.shape != info.Shape {
		return nil, fmt.Errorf("%w: chunk %s has shape %v, want %v", ErrCorruptCache, info.Path, g.shape, info.Shape)
	}
	g.length = info.Length

	s.cache.Set(chrom, g, gocache.DefaultExpiration)
	s.log.WithFields(logrus.Fields{
		"chromosome": chrom,
		"bytes":      len(data),
	}).Debug("loaded chunk")
	return g, nil
}

func (s *PersistentStore[T]) build(lengths genomics.ChromLengths, loader Loader[T], args []any) error {
	s.init(KindPersistent, s.cfg.Stranded, s.cfg.Conditions, s.cfg.Resolution, s.cfg.Order, lengths)
	if err := s.checkShapes(); err != nil {
		return err
	}

	if !s.cfg.Overwrite {
		// a storage directory without metadata is an abandoned commit
		exists, err := s.storage.Exists(s.root)
		if err != nil {
			return fmt.Errorf("failed to check cache %s: %w", s.Location(), err)
		}
		if exists {
			s.log.WithField("path", s.Location()).Warn("removing incomplete cache")
			if err := s.storage.RemoveAll(s.root); err != nil {
				return fmt.Errorf("failed to remove incomplete cache: %w", err)
			}
		}
	}

	checkMemoryBudget(s.log, EstimateBytes[T](lengths, s.resolution, s.stranded, len(s.conditions)), s.cfg.MemoryBudget)

	s.building = s.allocate()
	s.lookup = lookupIn(s.building)
	s.state = stateBuilding
	s.log.WithField("path", s.Location()).Info("create")

	if loader != nil {
		if err := loader(s, args...); err != nil {
			s.building = nil
			return fmt.Errorf("failed to load store: %w", err)
		}
	}

	meta, reused, err := s.commit()
	s.building = nil
	if err != nil {
		return err
	}
	if reused {
		s.log.WithField("path", s.Location()).Info("cache committed concurrently, discarding local build")
		return s.reload(meta, lengths)
	}
	return s.seal(meta)
}

// commit writes every chromosome and then the metadata into a private
// staging directory and renames it into place. When another writer has
// committed first, its metadata is returned with reused set.
func (s *PersistentStore[T]) commit() (meta Metadata, reused bool, err error) {
	staging := path.Join(s.key, ".storage-"+uuid.NewString())
	defer func() {
		if err != nil || reused {
			if rmErr := s.storage.RemoveAll(staging); rmErr != nil {
				s.log.WithError(rmErr).WithField("path", staging).Warn("failed to remove staging directory")
			}
		}
	}()

	meta = Metadata{
		Format:      formatName,
		Version:     formatVersion,
		Created:     time.Now().UTC(),
		CreatedBy:   createdBy,
		Dtype:       dtypeOf[T](),
		Stranded:    s.stranded,
		Conditions:  s.Conditions(),
		Order:       s.order,
		Resolution:  s.resolution,
		Tags:        append([]string{}, s.cfg.DataTags...),
		Compression: CompressionConfig{Algorithm: s.compressor.Algorithm()},
	}

	if meta.Chunks, err = s.writeChunks(staging); err != nil {
		return meta, false, err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, false, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.storage.WriteFile(path.Join(staging, metadataFile), data); err != nil {
		return meta, false, fmt.Errorf("failed to write metadata: %w", err)
	}

	if s.cfg.Overwrite {
		return meta, false, s.replace(staging)
	}

	if winner, ok, err := s.winner(); err != nil || ok {
		return winner, ok, err
	}
	if err := s.storage.Rename(staging, s.root); err != nil {
		if winner, ok, werr := s.winner(); werr == nil && ok {
			return winner, true, nil
		}
		return meta, false, fmt.Errorf("failed to commit cache %s: %w", s.Location(), err)
	}
	return meta, false, nil
}

// winner returns the metadata committed by another writer, if any.
func (s *PersistentStore[T]) winner() (Metadata, bool, error) {
	ok, err := s.committed()
	if err != nil || !ok {
		return Metadata{}, false, err
	}
	meta, err := s.readMetadata()
	if err != nil {
		return Metadata{}, false, err
	}
	return meta, true, nil
}

// replace swaps staging in for an existing storage directory.
func (s *PersistentStore[T]) replace(staging string) error {
	exists, err := s.storage.Exists(s.root)
	if err != nil {
		return fmt.Errorf("failed to check cache %s: %w", s.Location(), err)
	}
	if !exists {
		if err := s.storage.Rename(staging, s.root); err != nil {
			return fmt.Errorf("failed to commit cache %s: %w", s.Location(), err)
		}
		return nil
	}

	trash := path.Join(s.key, ".trash-"+uuid.NewString())
	if err := s.storage.Rename(s.root, trash); err != nil {
		return fmt.Errorf("failed to move old cache aside: %w", err)
	}
	if err := s.storage.Rename(staging, s.root); err != nil {
		if rbErr := s.storage.Rename(trash, s.root); rbErr != nil {
			s.log.WithError(rbErr).WithField("path", trash).Error("failed to restore previous cache")
		}
		return fmt.Errorf("failed to commit cache %s: %w", s.Location(), err)
	}
	if err := s.storage.RemoveAll(trash); err != nil {
		s.log.WithError(err).WithField("path", trash).Warn("failed to remove previous cache")
	}
	return nil
}
