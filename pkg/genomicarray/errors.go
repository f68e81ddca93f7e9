package genomicarray

import (
	"errors"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
)

var (
	// ErrInvalidConfig marks configuration errors: bad order or resolution,
	// duplicate conditions, unknown storage kind, caching disabled for the
	// persistent backend.
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrInvalidCondition  = errors.New("invalid condition index")
	ErrInvalidInterval   = genomics.ErrInvalidInterval
	ErrUnknownChromosome = errors.New("unknown chromosome")

	// ErrReadOnly is returned by Write on a sealed persistent store.
	ErrReadOnly = errors.New("store is read-only")
	ErrClosed   = errors.New("store is closed")

	// ErrNotCached is returned when reopening a cache that does not exist.
	ErrNotCached      = errors.New("no cached store at location")
	ErrCorruptCache   = errors.New("corrupt cache")
	ErrDtypeMismatch  = errors.New("dtype mismatch")
	ErrConfigMismatch = errors.New("cached store does not match requested configuration")
)
