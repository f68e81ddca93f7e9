//go:build linux

package genomicarray

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// detectSystemMemory reads MemTotal and MemAvailable from /proc/meminfo.
// Older kernels without MemAvailable fall back to MemFree + Buffers + Cached.
func detectSystemMemory() (total int64, available int64) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	fields := make(map[string]int64, 5)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		switch key {
		case "MemTotal", "MemAvailable", "MemFree", "Buffers", "Cached":
		default:
			continue
		}
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		// reported in KB
		fields[key] = value * KB
	}

	total = fields["MemTotal"]
	available, ok := fields["MemAvailable"]
	if !ok {
		available = fields["MemFree"] + fields["Buffers"] + fields["Cached"]
	}
	return total, available
}
