package crawler

// QueueItem is one pending (url, depth) pair.
type QueueItem struct {
	URL   string
	Depth int
}

// Frontier is a FIFO queue of pending URLs with a monotonic visited set.
// It is not safe for concurrent use; the engine drives it from a single goroutine.
type Frontier struct {
	queue    []QueueItem
	pending  map[string]struct{}
	visited  map[string]struct{}
	maxPages int
	maxDepth int
}

// NewFrontier creates an empty frontier bounded by maxPages and maxDepth.
func NewFrontier(maxPages, maxDepth int) *Frontier {
	return &Frontier{
		pending:  make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
		maxDepth: maxDepth,
	}
}

// Push enqueues a normalized URL. It returns false when the URL was already
// visited or pending, or when depth exceeds the bound.
func (f *Frontier) Push(url string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	if _, seen := f.visited[url]; seen {
		return false
	}
	if _, queued := f.pending[url]; queued {
		return false
	}
	f.pending[url] = struct{}{}
	f.queue = append(f.queue, QueueItem{URL: url, Depth: depth})
	return true
}

// Next pops the oldest eligible item and marks it visited. It returns false
// once the queue is drained or the page budget is spent.
func (f *Frontier) Next() (QueueItem, bool) {
	for len(f.queue) > 0 && len(f.visited) < f.maxPages {
		item := f.queue[0]
		f.queue[0] = QueueItem{}
		f.queue = f.queue[1:]
		delete(f.pending, item.URL)
		if _, seen := f.visited[item.URL]; seen || item.Depth > f.maxDepth {
			continue
		}
		f.visited[item.URL] = struct{}{}
		return item, true
	}
	return QueueItem{}, false
}

// Visited reports whether url has been popped for fetching.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// VisitedCount returns the number of URLs handed out by Next.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// MaxDepth returns the depth bound.
func (f *Frontier) MaxDepth() int {
	return f.maxDepth
}
