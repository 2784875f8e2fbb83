package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsOpsInSubmissionOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var results []<-chan error

	for i := 0; i < 20; i++ {
		i := i
		results = append(results, q.Submit(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, r := range results {
		<-r
	}

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
}

func TestQueue_RunReturnsOpError(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	wantErr := context.DeadlineExceeded
	err := q.Run(context.Background(), func(ctx context.Context) error { return wantErr })

	assert.Equal(t, wantErr, err)
}

func TestQueue_CloseRejectsSubsequentSubmits(t *testing.T) {
	q := NewQueue()
	q.Close()

	err := q.Run(context.Background(), func(ctx context.Context) error { return nil })

	require.Error(t, err)
}

func TestQueue_CloseDrainsPendingOps(t *testing.T) {
	q := NewQueue()
	ran := make(chan struct{}, 1)

	done := q.Submit(context.Background(), func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		ran <- struct{}{}
		return nil
	})

	q.Close()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued op never ran before Close returned")
	}
	<-done
}
