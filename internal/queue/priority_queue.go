package queue

import (
	"container/heap"
	"sync"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

// Priority represents the priority level of a delivery job
type Priority int

const (
	// PriorityHigh for manual test deliveries, which a caller is waiting on
	PriorityHigh Priority = iota
	// PriorityNormal for event fan-out
	PriorityNormal
)

// DeliveryJob is one webhook delivery waiting for a worker
type DeliveryJob struct {
	Priority Priority
	Webhook  *domain.Webhook
	Event    domain.EventType
	Data     any
	// Done receives the delivery log when set; it must be buffered
	Done  chan<- *domain.WebhookLog
	index int
	seq   uint64
}

// deliveryJobHeap implements heap.Interface
type deliveryJobHeap []*DeliveryJob

func (h deliveryJobHeap) Len() int { return len(h) }

func (h deliveryJobHeap) Less(i, j int) bool {
	// Lower priority value first, FIFO within a priority
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h deliveryJobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deliveryJobHeap) Push(x interface{}) {
	n := len(*h)
	job := x.(*DeliveryJob)
	job.index = n
	*h = append(*h, job)
}

func (h *deliveryJobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // Avoid memory leak
	job.index = -1
	*h = old[0 : n-1]
	return job
}

// PriorityQueue is a bounded, thread-safe priority queue of delivery jobs
type PriorityQueue struct {
	jobs     deliveryJobHeap
	capacity int
	seq      uint64
	closed   bool
	mu       sync.Mutex
	cond     *sync.Cond
}

// NewPriorityQueue creates a queue holding at most capacity jobs.
// A capacity <= 0 means unbounded.
func NewPriorityQueue(capacity int) *PriorityQueue {
	pq := &PriorityQueue{
		jobs:     make(deliveryJobHeap, 0),
		capacity: capacity,
	}
	pq.cond = sync.NewCond(&pq.mu)
	heap.Init(&pq.jobs)
	return pq
}

// Push adds a job to the queue. It returns false when the queue is full or closed.
func (pq *PriorityQueue) Push(job *DeliveryJob) bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed || (pq.capacity > 0 && pq.jobs.Len() >= pq.capacity) {
		return false
	}

	pq.seq++
	job.seq = pq.seq
	heap.Push(&pq.jobs, job)
	pq.cond.Signal() // Wake up a waiting worker
	return true
}

// Pop removes and returns the highest priority job.
// Blocks while the queue is empty; returns nil once it is closed and drained.
func (pq *PriorityQueue) Pop() *DeliveryJob {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for pq.jobs.Len() == 0 {
		if pq.closed {
			return nil
		}
		pq.cond.Wait()
	}

	return heap.Pop(&pq.jobs).(*DeliveryJob)
}

// Close stops accepting jobs and wakes blocked workers.
// Jobs already queued are still returned by Pop.
func (pq *PriorityQueue) Close() {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.closed = true
	pq.cond.Broadcast()
}

// Len returns the number of jobs in the queue
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.jobs.Len()
}
