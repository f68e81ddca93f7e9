package genomics

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/fai"
	"github.com/biogo/hts/sam"
)

// ChromLengths maps chromosome names to their length in base pairs.
type ChromLengths map[string]int

// Names returns the chromosome names in sorted order.
func (c ChromLengths) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects empty names and negative lengths.
func (c ChromLengths) Validate() error {
	for name, length := range c {
		if name == "" {
			return fmt.Errorf("empty chromosome name")
		}
		if length < 0 {
			return fmt.Errorf("chromosome %s has negative length %d", name, length)
		}
	}
	return nil
}

// ReadChromSizes parses a UCSC style chrom.sizes file: name and length
// separated by whitespace, one chromosome per line.
func ReadChromSizes(r io.Reader) (ChromLengths, error) {
	lengths := make(ChromLengths)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected name and length", lineNum)
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid length: %w", lineNum, err)
		}
		if _, dup := lengths[fields[0]]; dup {
			return nil, fmt.Errorf("line %d: duplicate chromosome %s", lineNum, fields[0])
		}
		lengths[fields[0]] = length
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lengths, lengths.Validate()
}

// ChromLengthsFromFAI reads chromosome lengths from a samtools FASTA index.
func ChromLengthsFromFAI(r io.Reader) (ChromLengths, error) {
	idx, err := fai.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read FASTA index: %w", err)
	}
	lengths := make(ChromLengths, len(idx))
	for name, rec := range idx {
		lengths[name] = rec.Length
	}
	return lengths, nil
}

// ChromLengthsFromHeader collects the reference sequences of a SAM header.
func ChromLengthsFromHeader(h *sam.Header) ChromLengths {
	lengths := make(ChromLengths)
	for _, ref := range h.Refs() {
		lengths[ref.Name()] = ref.Len()
	}
	return lengths
}

// ChromLengthsFromBAM reads chromosome lengths from a BAM header.
func ChromLengthsFromBAM(r io.Reader) (ChromLengths, error) {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create BAM reader: %w", err)
	}
	defer br.Close()

	return ChromLengthsFromHeader(br.Header()), nil
}

// LoadChromLengths picks a parser from the file name: .fai, .bam, or a
// chrom.sizes table otherwise (optionally gzip-compressed).
func LoadChromLengths(path string) (ChromLengths, error) {
	r, closers, err := OpenText(path)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)

	switch {
	case strings.HasSuffix(path, ".fai"):
		return ChromLengthsFromFAI(r)
	case strings.HasSuffix(path, ".bam"):
		return ChromLengthsFromBAM(r)
	default:
		return ReadChromSizes(r)
	}
}
