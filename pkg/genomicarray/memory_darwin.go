//go:build darwin

package genomicarray

import (
	"encoding/binary"
	"syscall"
)

// detectSystemMemory reads hw.memsize. Available memory is estimated as
// three quarters of the total.
func detectSystemMemory() (total int64, available int64) {
	raw, err := syscall.Sysctl("hw.memsize")
	if err != nil {
		return 0, 0
	}

	// Sysctl trims the trailing NUL byte of the little-endian value
	buf := make([]byte, 8)
	copy(buf, raw)
	total = int64(binary.LittleEndian.Uint64(buf))

	return total, total * 3 / 4
}
