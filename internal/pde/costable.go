package pde

import "math"

// cosTable returns table[k] = cos(kπ/n) for k in [0,n).
func cosTable(n int) []float64 {
	table := make([]float64, n)
	piN := math.Pi / float64(n)
	for k := range table {
		table[k] = math.Cos(piN * float64(k))
	}
	return table
}

// tableCache holds the per-axis cosine tables for one plane shape. It is
// owned by a single Solver; there is no process-wide table storage. A
// shape change invalidates the single entry.
type tableCache struct {
	w, h       int
	cosx, cosy []float64
}

func (c *tableCache) get(w, h int) (cosx, cosy []float64) {
	if c.w != w || c.cosx == nil {
		c.cosx = cosTable(w)
		c.w = w
	}
	if c.h != h || c.cosy == nil {
		c.cosy = cosTable(h)
		c.h = h
	}
	return c.cosx, c.cosy
}
