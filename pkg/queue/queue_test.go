package queue

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func drain(q *CrawlQueue) []string {
	var urls []string
	for {
		item, ok := q.Next()
		if !ok {
			return urls
		}
		urls = append(urls, item.URL)
	}
}

func TestCrawlQueue_EmptyNext(t *testing.T) {
	q := NewCrawlQueue(testLogger())
	_, ok := q.Next()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestCrawlQueue_FIFOWithinDepth(t *testing.T) {
	q := NewCrawlQueue(testLogger())
	for _, u := range []string{"c", "a", "b", "e", "d"} {
		q.Add(models.WorkItem{URL: u, Depth: 1})
	}
	assert.Equal(t, []string{"c", "a", "b", "e", "d"}, drain(q))
}

func TestCrawlQueue_BreadthFirst(t *testing.T) {
	q := NewCrawlQueue(testLogger())
	q.Add(models.WorkItem{URL: "seed", Depth: 0})

	item, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "seed", item.URL)

	q.Add(models.WorkItem{URL: "p1", Depth: 1})
	q.Add(models.WorkItem{URL: "p2", Depth: 1})

	item, _ = q.Next()
	assert.Equal(t, "p1", item.URL)
	q.Add(models.WorkItem{URL: "p1-child", Depth: 2})

	assert.Equal(t, []string{"p2", "p1-child"}, drain(q))
}

func TestCrawlQueue_Close(t *testing.T) {
	q := NewCrawlQueue(testLogger())
	q.Add(models.WorkItem{URL: "a"})
	q.Add(models.WorkItem{URL: "b"})

	assert.Equal(t, 2, q.Close())
	q.Add(models.WorkItem{URL: "c"})

	_, ok := q.Next()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestCrawlQueue_ConcurrentAdd(t *testing.T) {
	q := NewCrawlQueue(testLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Add(models.WorkItem{URL: "u", Depth: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, q.Len())
	assert.Len(t, drain(q), 50)
}
