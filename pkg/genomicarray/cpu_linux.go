//go:build linux

package genomicarray

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// detectWorkers counts the fast physical cores from /proc/cpuinfo. On hybrid
// parts the slower efficiency cores are left out; otherwise every logical
// CPU is used.
func detectWorkers() int {
	if n := fastCoresLinux(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func fastCoresLinux() int {
	file, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	// highest clock seen per physical core
	freqs := make(map[int]float64)
	coreID := -1
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "processor":
			coreID = -1
		case "core id":
			if id, err := strconv.Atoi(val); err == nil {
				coreID = id
			}
		case "cpu MHz":
			if f, err := strconv.ParseFloat(val, 64); err == nil && coreID >= 0 {
				freqs[coreID] = max(freqs[coreID], f)
			}
		}
	}
	if len(freqs) <= 2 {
		return 0
	}

	var sum float64
	for _, f := range freqs {
		sum += f
	}
	cutoff := 0.9 * sum / float64(len(freqs))

	fast := 0
	for _, f := range freqs {
		if f >= cutoff {
			fast++
		}
	}
	if fast == len(freqs) {
		return 0
	}
	return fast
}
