// Package frontier holds the mutable crawl state for one exploration run:
// the set of URLs already visited and the working set of URLs pending visit.
package frontier

import (
	"container/heap"
	"sync"
)

// Order selects how PopNext chooses among pending entries.
type Order string

const (
	// OrderFIFO pops entries strictly in insertion order (breadth-first).
	OrderFIFO Order = "fifo"
	// OrderPriority pops the highest-priority entry first, ties broken by
	// insertion order. Under a page cap this spends the budget on the
	// highest-expected-value pages first.
	OrderPriority Order = "priority"
)

// Entry is a pending URL plus the discovery context used for ordering.
// The seed carries priority 0.
type Entry struct {
	URL      string
	Priority float64
	seq      int
}

// Frontier owns the visited and pending sets for one run. All operations are
// mutex-guarded so the visited-check-and-mark is atomic per URL.
// Invariant: visited and pending never intersect, and once a URL is visited
// it is terminal for the lifetime of the run.
type Frontier struct {
	mu      sync.Mutex
	order   Order
	visited map[string]bool
	pending map[string]bool
	queue   entryHeap
	seq     int
}

// New creates an empty frontier with the given pop order.
func New(order Order) *Frontier {
	f := &Frontier{
		order:   order,
		visited: make(map[string]bool),
		pending: make(map[string]bool),
	}
	f.queue.order = order
	return f
}

// Seed adds the start URL to pending.
func (f *Frontier) Seed(url string) {
	f.Push(url, 0)
}

// Push adds a candidate URL to pending unless it has been visited or is
// already pending. Duplicate discovery is expected and silently ignored.
func (f *Frontier) Push(url string, priority float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited[url] || f.pending[url] {
		return
	}
	f.pending[url] = true
	heap.Push(&f.queue, Entry{URL: url, Priority: priority, seq: f.seq})
	f.seq++
}

// PopNext removes and returns the next entry to visit. The second return is
// false when the frontier is empty.
func (f *Frontier) PopNext() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.queue.Len() > 0 {
		e := heap.Pop(&f.queue).(Entry)
		// Entries may have been visited out of band since insertion.
		if f.visited[e.URL] {
			continue
		}
		delete(f.pending, e.URL)
		return e, true
	}
	return Entry{}, false
}

// MarkVisited makes url terminal: it leaves pending and PopNext will never
// return it again, even if re-pushed. Idempotent.
func (f *Frontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[url] = true
	delete(f.pending, url)
}

// Visited reports whether url has been visited this run.
func (f *Frontier) Visited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[url]
}

// Size reports the count of pending entries.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount reports the count of visited URLs.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// entryHeap orders entries per the configured Order. In OrderFIFO it behaves
// as a queue; in OrderPriority higher priority wins, insertion order breaks
// ties.
type entryHeap struct {
	entries []Entry
	order   Order
}

func (h *entryHeap) Len() int { return len(h.entries) }

func (h *entryHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if h.order == OrderPriority && a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *entryHeap) Push(x any) {
	h.entries = append(h.entries, x.(Entry))
}

func (h *entryHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}
