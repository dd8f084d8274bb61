// Package batch groups allocated files for dispatch.
package batch

import (
	"fmt"

	t "codebrief/internal/types"
)

// Split partitions allocated files into consecutive groups of size, the
// last group possibly smaller. Ordinals come out 0-based and dense, and
// member order is discovery order, untouched. Every input file lands in
// exactly one batch.
func Split(allocated []t.AllocatedFile, size int) ([]t.Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size %d, want > 0", size)
	}
	if len(allocated) == 0 {
		return nil, nil
	}
	batches := make([]t.Batch, 0, (len(allocated)+size-1)/size)
	for start := 0; start < len(allocated); start += size {
		end := start + size
		if end > len(allocated) {
			end = len(allocated)
		}
		batches = append(batches, t.Batch{
			Ordinal: len(batches),
			Members: allocated[start:end],
		})
	}
	return batches, nil
}
