package genomicarray

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// SystemMemory holds system memory information
type SystemMemory struct {
	Total     int64
	Available int64
	Used      int64
}

// GetSystemMemory returns system memory stats
func GetSystemMemory() SystemMemory {
	total, available := detectSystemMemory()

	// Fallback to sensible defaults if detection fails
	if total == 0 {
		total = 16 * GB
		available = 12 * GB
	}

	return SystemMemory{
		Total:     total,
		Available: available,
		Used:      total - available,
	}
}

// ParseSize parses size string (e.g., "1M", "512K", "8G", "2GB") to bytes
func ParseSize(sizeStr string) (int64, error) {
	s := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(sizeStr)), "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = KB
	case strings.HasSuffix(s, "M"):
		multiplier = MB
	case strings.HasSuffix(s, "G"):
		multiplier = GB
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size: %s", sizeStr)
	}

	return value * multiplier, nil
}

// FormatSize renders n bytes with a binary unit.
func FormatSize(n int64) string {
	switch {
	case n >= GB:
		return fmt.Sprintf("%.1fG", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.1fM", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.1fK", float64(n)/KB)
	}
	return fmt.Sprintf("%dB", n)
}

// EstimateBytes returns the in-process size of a store of element type T.
func EstimateBytes[T Number](lengths map[string]int, resolution int, stranded bool, conditions int) int64 {
	strands := 1
	if stranded {
		strands = 2
	}
	var total int64
	for _, length := range lengths {
		total += int64(shapeFor(length, resolution, strands, conditions).Len())
	}
	return total * int64(sizeOf[T]())
}

// checkMemoryBudget warns when need exceeds budget, or available system
// memory when budget is zero.
func checkMemoryBudget(log logrus.FieldLogger, need, budget int64) {
	if budget <= 0 {
		budget = GetSystemMemory().Available
	}
	if need > budget {
		log.WithFields(logrus.Fields{
			"required": FormatSize(need),
			"budget":   FormatSize(budget),
		}).Warn("array allocation exceeds memory budget")
	}
}
