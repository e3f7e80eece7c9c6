// Package pool provides bucketed sync.Pool instances of float64 scratch
// planes for the solver's hot paths. Planes are organized by size class
// (in samples, not bytes) to minimize waste.
package pool

import "sync"

// Size classes, in float64 samples. Image planes range from tiny test
// grids to multi-megapixel photographs.
const (
	Size1K   = 1 << 10
	Size16K  = 1 << 14
	Size256K = 1 << 18
	Size1M   = 1 << 20
	Size4M   = 1 << 22
	Size16M  = 1 << 24
)

// bucketIndex returns the pool index for a given sample count.
func bucketIndex(size int) int {
	switch {
	case size <= Size1K:
		return 0
	case size <= Size16K:
		return 1
	case size <= Size256K:
		return 2
	case size <= Size1M:
		return 3
	case size <= Size4M:
		return 4
	default:
		return 5
	}
}

var sizes = [6]int{Size1K, Size16K, Size256K, Size1M, Size4M, Size16M}

var pools [6]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				p := make([]float64, sz)
				return &p
			},
		}
	}
}

// Get returns a float64 slice of at least the requested sample count from
// the pool. The returned slice has length == size, may have larger
// capacity, and holds stale values from previous uses. The caller must
// call Put when done.
func Get(size int) []float64 {
	idx := bucketIndex(size)
	pp := pools[idx].Get().(*[]float64)
	p := *pp
	if cap(p) < size {
		p = make([]float64, size)
		*pp = p
		return p
	}
	return p[:size]
}

// GetZeroed returns a pooled slice with every sample set to zero.
func GetZeroed(size int) []float64 {
	p := Get(size)
	clear(p)
	return p
}

// Put returns a slice to the pool. The slice must have been obtained from
// Get. Slices with capacity below the smallest size class are not pooled.
func Put(p []float64) {
	c := cap(p)
	if c < Size1K {
		return
	}
	idx := bucketIndex(c)
	p = p[:c]
	pools[idx].Put(&p)
}
