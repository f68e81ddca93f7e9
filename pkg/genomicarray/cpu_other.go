//go:build !darwin && !linux

package genomicarray

import "runtime"

func detectWorkers() int {
	return runtime.NumCPU()
}
