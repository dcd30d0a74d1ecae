package model

import "github.com/chewxy/math32"

const maxGridSize = 1 << 10

// SimplifySloppy reduces a triangle list to at most target indices by
// clustering vertices on a uniform grid and collapsing each cell to its most
// central vertex. The grid resolution is the finest one whose result still
// fits the target. Topology is not preserved and the result may be empty.
// Returned indices reference the original vertices.
func SimplifySloppy(indices []uint32, positions [][3]float32, target int) []uint32 {
	target -= target % 3
	if target >= len(indices)-len(indices)%3 {
		out := make([]uint32, len(indices)-len(indices)%3)
		copy(out, indices)
		return out
	}
	if target < 3 || len(positions) == 0 {
		return nil
	}

	q := newQuantizer(indices, positions)

	lo, hi := 1, maxGridSize
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if len(q.collapse(indices, mid, nil)) <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	cells := q.cells(lo)
	return q.collapse(indices, lo, q.representatives(cells))
}

type quantizer struct {
	positions [][3]float32
	used      []uint32
	min       [3]float32
	extent    [3]float32
}

func newQuantizer(indices []uint32, positions [][3]float32) *quantizer {
	q := &quantizer{positions: positions}
	seen := make(map[uint32]bool)
	first := true
	for _, v := range indices {
		if int(v) >= len(positions) || seen[v] {
			continue
		}
		seen[v] = true
		q.used = append(q.used, v)
		p := positions[v]
		if first {
			q.min, q.extent = p, p
			first = false
			continue
		}
		for i := 0; i < 3; i++ {
			q.min[i] = math32.Min(q.min[i], p[i])
			q.extent[i] = math32.Max(q.extent[i], p[i])
		}
	}
	for i := 0; i < 3; i++ {
		q.extent[i] -= q.min[i]
	}
	return q
}

// cell returns the grid cell key of vertex v at resolution grid.
func (q *quantizer) cell(v uint32, grid int) uint64 {
	var key uint64
	p := q.positions[v]
	for i := 0; i < 3; i++ {
		c := 0
		if q.extent[i] > 0 {
			c = int((p[i] - q.min[i]) / q.extent[i] * float32(grid))
			c = max(0, min(c, grid-1))
		}
		key |= uint64(c) << (21 * i)
	}
	return key
}

func (q *quantizer) cells(grid int) map[uint32]uint64 {
	out := make(map[uint32]uint64, len(q.used))
	for _, v := range q.used {
		out[v] = q.cell(v, grid)
	}
	return out
}

// representatives picks, per cell, the vertex closest to the cell's centroid.
func (q *quantizer) representatives(cells map[uint32]uint64) map[uint64]uint32 {
	type acc struct {
		sum [3]float32
		n   float32
	}
	centroids := make(map[uint64]*acc)
	for _, v := range q.used {
		a := centroids[cells[v]]
		if a == nil {
			a = &acc{}
			centroids[cells[v]] = a
		}
		p := q.positions[v]
		for i := 0; i < 3; i++ {
			a.sum[i] += p[i]
		}
		a.n++
	}

	rep := make(map[uint64]uint32, len(centroids))
	best := make(map[uint64]float32, len(centroids))
	for _, v := range q.used {
		key := cells[v]
		a := centroids[key]
		p := q.positions[v]
		var d float32
		for i := 0; i < 3; i++ {
			delta := p[i] - a.sum[i]/a.n
			d += delta * delta
		}
		if cur, ok := best[key]; !ok || d < cur || (d == cur && v < rep[key]) {
			best[key] = d
			rep[key] = v
		}
	}
	return rep
}

// collapse maps every triangle to its cells, dropping triangles that
// collapse to fewer than three cells and duplicates of a kept triangle with
// the same winding. With rep == nil it only counts and returns a slice of
// the right length filled with zeros.
func (q *quantizer) collapse(indices []uint32, grid int, rep map[uint64]uint32) []uint32 {
	type tri [3]uint64
	seen := make(map[tri]bool)
	var out []uint32

	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if int(a) >= len(q.positions) || int(b) >= len(q.positions) || int(c) >= len(q.positions) {
			continue
		}
		ka, kb, kc := q.cell(a, grid), q.cell(b, grid), q.cell(c, grid)
		if ka == kb || kb == kc || ka == kc {
			continue
		}
		// Rotate so the smallest key leads; keeps winding.
		key := tri{ka, kb, kc}
		switch {
		case kb < ka && kb < kc:
			key = tri{kb, kc, ka}
		case kc < ka && kc < kb:
			key = tri{kc, ka, kb}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if rep == nil {
			out = append(out, 0, 0, 0)
			continue
		}
		out = append(out, rep[ka], rep[kb], rep[kc])
	}
	return out
}
