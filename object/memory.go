package object

import (
	"math/bits"
	"runtime"
	"runtime/debug"
)

// Size of the Value interface in bytes.
const ValueSize = 2 * bits.UintSize / 8 // also unsafe.Sizeof(interface) == 16 bytes (2 pointers == 2 ints)

// Returns the amount of free memory in bytes.
func FreeMemory() int64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	currentAlloc := memStats.HeapAlloc
	// retrieve the current limit.
	gomemlimit := debug.SetMemoryLimit(-1)
	return gomemlimit - int64(currentAlloc) //nolint:gosec // can be negative.
}

func SizeOk(n int) (bool, int64) {
	if n <= 256 { // no checks for small slices (4k memory/one typical page)
		return true, 0
	}
	free := FreeMemory()
	return free >= 0 && int64(n) < free/ValueSize, free
}

// MakeValueSlice is the memory checking version of make() for result arrays:
// functions like FLAT and FLATMAP can be asked for very large outputs and must
// fail with an error rather than get the process OOM killed.
func MakeValueSlice(function string, n int) ([]Value, error) {
	if ok, _ := SizeOk(n); !ok {
		runtime.GC()
		if ok, free := SizeOk(n); !ok {
			return nil, NewInvalidArguments(function, "would exceed memory requesting %d values, %d bytes free", n, free)
		}
	}
	return make([]Value, 0, n), nil
}
