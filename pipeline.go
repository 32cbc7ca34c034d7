package plume

import (
	"sync"

	"github.com/akmonengine/plume/constraint"
	"github.com/bits-and-blooms/bitset"
)

// task calls fn on every element of data, spread over workersCount goroutines
func task[T any](workersCount int, data []T, fn func(data T)) {
	taskChunks(workersCount, data, func(chunk []T) {
		for _, d := range chunk {
			fn(d)
		}
	})
}

// taskChunks splits data into one contiguous chunk per worker
func taskChunks[T any](workersCount int, data []T, fn func(chunk []T)) {
	workersCount = max(1, workersCount)
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	var wg sync.WaitGroup
	for workerID := range workersCount {
		start := workerID * chunkSize
		end := min(start+chunkSize, dataSize)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(chunk []T) {
			defer wg.Done()
			fn(chunk)
		}(data[start:end])
	}
	wg.Wait()
}

// solverBatches splits the constraints into batches where no two constraints
// write the same delta velocity slot. The constraints of a batch can be
// solved concurrently. Each batch keeps the constraints grouped by kind.
func solverBatches(constraints *constraint.VelocityConstraints) [][]constraint.AnyVelocityConstraint {
	var batches [][]constraint.AnyVelocityConstraint
	var used []*bitset.BitSet

	for _, ref := range constraints.All() {
		slots := constraints.Slots(ref)

		b := 0
		for ; b < len(batches); b++ {
			if !anySlotUsed(used[b], slots) {
				break
			}
		}
		if b == len(batches) {
			batches = append(batches, nil)
			used = append(used, bitset.New(0))
		}

		batches[b] = append(batches[b], ref)
		for _, slot := range slots {
			used[b].Set(uint(slot))
		}
	}

	return batches
}

func anySlotUsed(used *bitset.BitSet, slots []int) bool {
	for _, slot := range slots {
		if used.Test(uint(slot)) {
			return true
		}
	}
	return false
}
