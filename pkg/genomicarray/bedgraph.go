package genomicarray

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
)

// BedGraphLoader returns a loader that fills condition i from the bedGraph
// file sources[i]. Records on chromosomes the store does not know are
// skipped. The value column is converted to T.
func BedGraphLoader[T Number](sources ...string) Loader[T] {
	return func(store Store[T], _ ...any) error {
		if len(sources) != len(store.Conditions()) {
			return fmt.Errorf("%w: %d bedGraph files for %d conditions",
				ErrInvalidConfig, len(sources), len(store.Conditions()))
		}
		for i, src := range sources {
			bed, err := genomics.OpenBED(src)
			if err != nil {
				return err
			}
			err = LoadBedGraph(store, i, bed.BEDReader)
			bed.Close()
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", src, err)
			}
		}
		return nil
	}
}

// LoadBedGraph writes every record of rr into condition. bedGraph records
// are BED records whose fourth column holds the value.
func LoadBedGraph[T Number](store Store[T], condition int, rr genomics.RegionReader) error {
	for {
		reg, err := rr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		value, err := strconv.ParseFloat(reg.Name, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid value %q at %s", ErrInvalidInterval, reg.Name, reg.Interval())
		}

		err = store.Write(reg.Interval(), condition, T(value))
		if errors.Is(err, ErrUnknownChromosome) {
			continue
		}
		if err != nil {
			return err
		}
	}
}
