package genomicarray

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
)

// chunkResult is the outcome of encoding and writing one chromosome.
type chunkResult struct {
	info ChunkInfo
	err  error
}

// writeChunks encodes every chromosome of the building store and writes it
// below dir using a pool of workers. The returned chunk list follows the
// chromosome order of the store. After the first failure the remaining
// chromosomes are skipped.
func (s *PersistentStore[T]) writeChunks(dir string) ([]ChunkInfo, error) {
	workers := min(s.cfg.workers(), max(1, len(s.names)))
	results := make([]chunkResult, len(s.names))
	jobs := make(chan int, workers*2)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed.Load() {
					continue
				}
				results[i] = s.writeChunk(dir, s.names[i])
				if results[i].err != nil {
					failed.Store(true)
				}
			}
		}()
	}

	for i := range s.names {
		if failed.Load() {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	chunks := make([]ChunkInfo, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.info.Path != "" {
			chunks = append(chunks, r.info)
		}
	}
	if len(chunks) != len(s.names) {
		return nil, fmt.Errorf("failed to write chunks: %d of %d written", len(chunks), len(s.names))
	}
	return chunks, nil
}

func (s *PersistentStore[T]) writeChunk(dir, name string) chunkResult {
	g := s.building[name]
	data, err := encodeChunk(g, s.compressor)
	if err != nil {
		return chunkResult{err: fmt.Errorf("failed to encode chunk %s: %w", name, err)}
	}
	rel := chunkPath(name)
	if err := s.storage.WriteFile(path.Join(dir, rel), data); err != nil {
		return chunkResult{err: fmt.Errorf("failed to write chunk %s: %w", name, err)}
	}

	hash := sha256.Sum256(data)
	return chunkResult{info: ChunkInfo{
		Path:        rel,
		Chromosome:  name,
		Length:      g.length,
		Shape:       g.shape,
		SizeBytes:   int64(len(data)),
		Compression: s.compressor.Algorithm(),
		Checksum:    hex.EncodeToString(hash[:]),
	}}
}
