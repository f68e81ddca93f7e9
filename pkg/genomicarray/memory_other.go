//go:build !darwin && !linux

package genomicarray

// detectSystemMemory reports nothing so GetSystemMemory uses its defaults.
func detectSystemMemory() (total int64, available int64) {
	return 0, 0
}
