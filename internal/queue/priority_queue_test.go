package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

func job(p Priority, id string) *DeliveryJob {
	return &DeliveryJob{Priority: p, Webhook: &domain.Webhook{ID: id}, Event: domain.EventMessageSent}
}

func TestPriorityQueue_Order(t *testing.T) {
	pq := NewPriorityQueue(0)

	require.True(t, pq.Push(job(PriorityNormal, "n1")))
	require.True(t, pq.Push(job(PriorityNormal, "n2")))
	require.True(t, pq.Push(job(PriorityHigh, "h1")))
	require.True(t, pq.Push(job(PriorityNormal, "n3")))

	var got []string
	for pq.Len() > 0 {
		got = append(got, pq.Pop().Webhook.ID)
	}
	assert.Equal(t, []string{"h1", "n1", "n2", "n3"}, got)
}

func TestPriorityQueue_Bounded(t *testing.T) {
	pq := NewPriorityQueue(2)

	assert.True(t, pq.Push(job(PriorityNormal, "a")))
	assert.True(t, pq.Push(job(PriorityNormal, "b")))
	assert.False(t, pq.Push(job(PriorityHigh, "c")), "full queue rejects jobs")
	assert.Equal(t, 2, pq.Len())

	assert.Equal(t, "a", pq.Pop().Webhook.ID)
	assert.True(t, pq.Push(job(PriorityNormal, "c")))
}

func TestPriorityQueue_CloseDrains(t *testing.T) {
	pq := NewPriorityQueue(10)
	require.True(t, pq.Push(job(PriorityNormal, "a")))
	pq.Close()

	assert.False(t, pq.Push(job(PriorityNormal, "b")), "closed queue rejects jobs")
	assert.Equal(t, "a", pq.Pop().Webhook.ID)
	assert.Nil(t, pq.Pop())
}

func TestPriorityQueue_CloseWakesWorkers(t *testing.T) {
	pq := NewPriorityQueue(10)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pq.Pop() != nil {
			}
		}()
	}

	pq.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers still blocked after Close")
	}
}
