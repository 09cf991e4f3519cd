package vm

import "fmt"

// SafeUint64ToInt safely converts a uint64 depth/count value into an int,
// returning an error instead of silently wrapping on platforms where int
// is 32 bits. Stack depths and capacities are always small in practice,
// but the conversion point is centralized here rather than repeated at
// every call site.
func SafeUint64ToInt(v uint64) (int, error) {
	if v > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("bee: value %d exceeds platform int range", v)
	}
	return int(v), nil
}
