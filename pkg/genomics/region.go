package genomics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Region is one record of a region file.
type Region struct {
	Chrom  string
	Start  int
	End    int
	Name   string
	Score  float64
	Strand Strand
}

// Interval returns the region's coordinates.
func (r Region) Interval() Interval {
	return Interval{Chrom: r.Chrom, Start: r.Start, End: r.End, Strand: r.Strand}
}

// RegionReader yields region records until io.EOF.
type RegionReader interface {
	Read() (Region, error)
}

// ReadAllRegions drains rr.
func ReadAllRegions(rr RegionReader) ([]Region, error) {
	var regions []Region
	for {
		r, err := rr.Read()
		if err == io.EOF {
			return regions, nil
		}
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
}

// BEDReader reads BED records (chrom, start, end, name, score, strand).
// Only the first three columns are required. Header, track, browser and
// comment lines are skipped.
type BEDReader struct {
	scanner *bufio.Scanner
	line    int
}

var _ RegionReader = (*BEDReader)(nil)

// NewBEDReader wraps r.
func NewBEDReader(r io.Reader) *BEDReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &BEDReader{scanner: scanner}
}

// Read returns the next record.
func (br *BEDReader) Read() (Region, error) {
	for br.scanner.Scan() {
		br.line++
		line := strings.TrimRight(br.scanner.Text(), "\r")
		if skipLine(line) {
			continue
		}
		region, err := parseBEDLine(line)
		if err != nil {
			return Region{}, fmt.Errorf("line %d: %w", br.line, err)
		}
		return region, nil
	}
	if err := br.scanner.Err(); err != nil {
		return Region{}, err
	}
	return Region{}, io.EOF
}

func skipLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "track") ||
		strings.HasPrefix(trimmed, "browser")
}

func parseBEDLine(line string) (Region, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		fields = strings.Fields(line)
	}
	if len(fields) < 3 {
		return Region{}, fmt.Errorf("%w: expected at least 3 columns, got %d", ErrInvalidInterval, len(fields))
	}

	start, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Region{}, fmt.Errorf("%w: invalid start position: %v", ErrInvalidInterval, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return Region{}, fmt.Errorf("%w: invalid end position: %v", ErrInvalidInterval, err)
	}
	if start < 0 || end < start {
		return Region{}, fmt.Errorf("%w: %s:%d-%d", ErrInvalidInterval, fields[0], start, end)
	}

	region := Region{
		Chrom:  fields[0],
		Start:  start,
		End:    end,
		Strand: StrandNone,
	}
	if len(fields) > 3 {
		region.Name = fields[3]
	}
	if len(fields) > 4 && fields[4] != "." {
		region.Score, err = strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: invalid score: %v", ErrInvalidInterval, err)
		}
	}
	if len(fields) > 5 {
		region.Strand, err = ParseStrand(fields[5])
		if err != nil {
			return Region{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
		}
	}
	return region, nil
}

// BEDFile is a BEDReader over an opened file.
type BEDFile struct {
	*BEDReader
	closers []io.Closer
}

// OpenBED opens a BED file. Paths ending in .gz are decompressed.
func OpenBED(path string) (*BEDFile, error) {
	r, closers, err := OpenText(path)
	if err != nil {
		return nil, err
	}
	return &BEDFile{BEDReader: NewBEDReader(r), closers: closers}, nil
}

// Close closes the underlying file.
func (f *BEDFile) Close() error {
	return closeAll(f.closers)
}

// OpenText opens a plain or gzip-compressed text file. The returned closers
// must be closed in order by the caller.
func OpenText(path string) (io.Reader, []io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, []io.Closer{f}, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	return gz, []io.Closer{gz, f}, nil
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
