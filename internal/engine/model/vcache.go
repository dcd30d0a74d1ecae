package model

import "github.com/chewxy/math32"

// Vertex cache model used by OptimizeVertexCache.
const (
	cacheSize          = 32
	cacheDecayPower    = 1.5
	lastTriScore       = 0.75
	valenceBoostScale  = 2.0
	valenceBoostPower  = 0.5
	maxValenceForScore = 64
)

var (
	cacheScores   [cacheSize]float32
	valenceScores [maxValenceForScore]float32
)

func init() {
	for i := range cacheScores {
		if i < 3 {
			cacheScores[i] = lastTriScore
			continue
		}
		s := 1 - float32(i-3)/float32(cacheSize-3)
		cacheScores[i] = math32.Pow(s, cacheDecayPower)
	}
	for i := 1; i < maxValenceForScore; i++ {
		valenceScores[i] = valenceBoostScale * math32.Pow(float32(i), -valenceBoostPower)
	}
}

func vertexScore(cachePos, remaining int) float32 {
	if remaining == 0 {
		return -1
	}
	var score float32
	if cachePos >= 0 {
		score = cacheScores[cachePos]
	}
	if remaining < maxValenceForScore {
		return score + valenceScores[remaining]
	}
	return score + valenceBoostScale*math32.Pow(float32(remaining), -valenceBoostPower)
}

// OptimizeVertexCache reorders triangles for post-transform cache reuse
// using Forsyth's greedy scoring against a simulated LRU cache. Whole
// triangles move; each keeps its vertex order, so winding and the set of
// triangles are unchanged. Indices referencing vertices >= vertexCount
// leave the input order untouched.
func OptimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	out := make([]uint32, len(indices))
	triCount := len(indices) / 3
	if triCount == 0 {
		return out
	}
	for _, idx := range indices {
		if int(idx) >= vertexCount {
			copy(out, indices)
			return out
		}
	}

	// Triangle adjacency per vertex, packed as offsets into one slice.
	remaining := make([]int, vertexCount)
	for _, idx := range indices[:triCount*3] {
		remaining[idx]++
	}
	offsets := make([]int, vertexCount+1)
	for v := 0; v < vertexCount; v++ {
		offsets[v+1] = offsets[v] + remaining[v]
	}
	adjacency := make([]int, offsets[vertexCount])
	fill := make([]int, vertexCount)
	for t := 0; t < triCount; t++ {
		for k := 0; k < 3; k++ {
			v := indices[t*3+k]
			adjacency[offsets[v]+fill[v]] = t
			fill[v]++
		}
	}

	cachePos := make([]int, vertexCount)
	vScore := make([]float32, vertexCount)
	for v := range cachePos {
		cachePos[v] = -1
		vScore[v] = vertexScore(-1, remaining[v])
	}
	emitted := make([]bool, triCount)
	cache := make([]uint32, 0, cacheSize+3)
	next := make([]uint32, 0, cacheSize+3)
	cursor := 0
	best := -1

	for n := 0; n < triCount; n++ {
		if best < 0 {
			for emitted[cursor] {
				cursor++
			}
			best = cursor
		}
		t := best
		tri := indices[t*3 : t*3+3]
		copy(out[n*3:], tri)
		emitted[t] = true

		// Drop the triangle from its vertices' live adjacency.
		for _, v := range tri {
			live := adjacency[offsets[v] : offsets[v]+remaining[v]]
			for i, at := range live {
				if at == t {
					live[i] = live[len(live)-1]
					break
				}
			}
			remaining[v]--
		}

		// New cache: this triangle's vertices first, then the old order.
		next = append(next[:0], tri...)
		for _, v := range cache {
			if v != tri[0] && v != tri[1] && v != tri[2] {
				next = append(next, v)
			}
		}
		cache, next = next, cache

		for i, v := range cache {
			if i < cacheSize {
				cachePos[v] = i
			} else {
				cachePos[v] = -1
			}
			vScore[v] = vertexScore(cachePos[v], remaining[v])
		}

		best = -1
		var bestScore float32 = -1
		for _, v := range cache {
			for _, at := range adjacency[offsets[v] : offsets[v]+remaining[v]] {
				s := vScore[indices[at*3]] + vScore[indices[at*3+1]] + vScore[indices[at*3+2]]
				if s > bestScore {
					best, bestScore = at, s
				}
			}
		}
		if len(cache) > cacheSize {
			cache = cache[:cacheSize]
		}
	}
	copy(out[triCount*3:], indices[triCount*3:])
	return out
}

// ACMR returns the average cache miss ratio (transformed vertices per
// triangle) of indices for a FIFO cache of the given size.
func ACMR(indices []uint32, size int) float32 {
	triCount := len(indices) / 3
	if triCount == 0 {
		return 0
	}
	fifo := make([]uint32, 0, size)
	misses := 0
	for _, v := range indices[:triCount*3] {
		hit := false
		for _, c := range fifo {
			if c == v {
				hit = true
				break
			}
		}
		if hit {
			continue
		}
		misses++
		if len(fifo) == size {
			fifo = fifo[1:]
		}
		fifo = append(fifo, v)
	}
	return float32(misses) / float32(triCount)
}
