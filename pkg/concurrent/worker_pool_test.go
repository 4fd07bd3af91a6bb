package concurrent

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolProcessesEveryJob(t *testing.T) {
	pool := NewWorkerPool[int](4, 100)
	var total int64
	pool.Start(func(workerID int, job int) {
		atomic.AddInt64(&total, int64(job))
	})
	want := int64(0)
	for i := 1; i <= 100; i++ {
		pool.AddJob(i)
		want += int64(i)
	}
	pool.Close()
	pool.Wait()
	require.Equal(t, want, total)
}

func TestWorkerPoolShardingIsDeterministic(t *testing.T) {
	// job i must land on worker i mod numWorkers on every run
	for run := 0; run < 3; run++ {
		numWorkers := 3
		pool := NewWorkerPool[int](numWorkers, 32)
		shards := make([][]int, numWorkers)
		pool.Start(func(workerID int, job int) {
			shards[workerID] = append(shards[workerID], job)
		})
		for i := 0; i < 30; i++ {
			pool.AddJob(i)
		}
		pool.Close()
		pool.Wait()

		for w := 0; w < numWorkers; w++ {
			for _, job := range shards[w] {
				require.Equal(t, w, job%numWorkers)
			}
			require.Len(t, shards[w], 10)
		}
	}
}
