package deduplication

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// pairwiseGroups clusters n items with a quadratic scan.
//
// The upper triangle of the similarity matrix is evaluated row by row, rows
// fanned out over at most workers goroutines; each row writes only its own
// neighbor slice. Cluster assembly runs afterwards on the calling goroutine in
// input order: each unprocessed item seeds a group with every unprocessed
// later item whose similarity is >= threshold. The result therefore does not
// depend on goroutine scheduling.
func pairwiseGroups(ctx context.Context, n, workers int, threshold float64, similar func(i, j int) (float64, bool)) ([][]int, int, error) {
	neighbors := make([][]int, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("comparing row %d panicked: %v", i, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			var row []int
			for j := i + 1; j < n; j++ {
				if sim, ok := similar(i, j); ok && sim >= threshold {
					row = append(row, j)
				}
			}
			neighbors[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	processed := make([]bool, n)
	var groups [][]int
	for i := 0; i < n; i++ {
		if processed[i] {
			continue
		}
		members := []int{i}
		for _, j := range neighbors[i] {
			if !processed[j] {
				members = append(members, j)
			}
		}
		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			processed[m] = true
		}
		groups = append(groups, members)
	}

	return groups, n * (n - 1) / 2, nil
}
