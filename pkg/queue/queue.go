package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

// queueItem is one entry of the crawl frontier
type queueItem struct {
	workItem models.WorkItem
	seq      uint64 // Insertion order, breaks ties between equal depths
	index    int    // The index of the item in the heap (required by heap interface)
}

// frontier implements heap.Interface ordered by depth, then insertion order.
// Since links are only ever enqueued one level deeper than the page being
// processed, this is exactly FIFO (breadth-first) order.
type frontier []*queueItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].workItem.Depth != f[j].workItem.Depth {
		return f[i].workItem.Depth < f[j].workItem.Depth
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*f)
	*f = append(*f, item)
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*f = old[0 : n-1]
	return item
}

// CrawlQueue is the breadth-first work queue of one crawl run
type CrawlQueue struct {
	items  frontier
	seq    uint64
	mu     sync.Mutex
	closed bool
	log    *logrus.Entry
}

// NewCrawlQueue creates an empty queue
func NewCrawlQueue(log *logrus.Entry) *CrawlQueue {
	q := &CrawlQueue{log: log}
	heap.Init(&q.items)
	return q
}

// Add enqueues a work item. Items added after Close are dropped.
func (q *CrawlQueue) Add(item models.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Debugf("Dropping %s: queue closed", item.URL)
		return
	}
	q.seq++
	heap.Push(&q.items, &queueItem{workItem: item, seq: q.seq})
}

// Next removes and returns the head of the queue without blocking.
// ok is false once the queue is empty or closed.
func (q *CrawlQueue) Next() (item models.WorkItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) == 0 {
		return models.WorkItem{}, false
	}
	return heap.Pop(&q.items).(*queueItem).workItem, true
}

// Close discards pending items; subsequent Add calls are ignored.
// Returns the number of items discarded.
func (q *CrawlQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.items)
	q.items = q.items[:0]
	q.closed = true
	return dropped
}

// Len returns the number of pending items
func (q *CrawlQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
