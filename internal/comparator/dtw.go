package comparator

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// dtw returns the accumulated Euclidean alignment cost of a and b divided
// by the length of the optimal warping path.
func dtw(a, b [][]float64) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}
	cost := make([][]float64, n+1)
	steps := make([][]int, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
		steps[i] = make([]int, m+1)
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			d := floats.Distance(a[i-1], b[j-1], 2)
			// diagonal first so ties prefer the shorter path
			bi, bj := i-1, j-1
			if cost[i-1][j] < cost[bi][bj] {
				bi, bj = i-1, j
			}
			if cost[i][j-1] < cost[bi][bj] {
				bi, bj = i, j-1
			}
			cost[i][j] = d + cost[bi][bj]
			steps[i][j] = steps[bi][bj] + 1
		}
	}
	return cost[n][m] / float64(steps[n][m])
}

func reversed(seq [][]float64) [][]float64 {
	out := make([][]float64, len(seq))
	for i, v := range seq {
		out[len(seq)-1-i] = v
	}
	return out
}
