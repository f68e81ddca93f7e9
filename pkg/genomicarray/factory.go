package genomicarray

import (
	"fmt"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
)

// Create constructs a store of the given kind. An unknown kind fails with
// ErrInvalidConfig before anything is read or written.
func Create[T Number](kind StorageKind, lengths genomics.ChromLengths, cfg *Config, loader Loader[T], args ...any) (Store[T], error) {
	var (
		store Store[T]
		err   error
	)
	switch kind {
	case KindPersistent:
		var s *PersistentStore[T]
		if s, err = NewPersistentStore[T](lengths, cfg, loader, args...); err == nil {
			store = s
		}
	case KindInMemory:
		var s *MemoryStore[T]
		if s, err = NewMemoryStore[T](lengths, cfg, loader, args...); err == nil {
			store = s
		}
	default:
		err = fmt.Errorf("%w: unknown storage kind %q", ErrInvalidConfig, kind)
	}
	return store, err
}

// Open reopens a cached store of the given kind.
func Open[T Number](kind StorageKind, cfg *Config) (Store[T], error) {
	switch kind {
	case KindPersistent:
		s, err := OpenPersistent[T](cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindInMemory:
		s, err := OpenArchive[T](cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown storage kind %q", ErrInvalidConfig, kind)
}
