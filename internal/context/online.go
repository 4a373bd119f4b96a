package context

import (
	"cmp"
	"container/heap"
	"sort"

	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// Online is the "online cleaning" context variant: inserts sort
// immediately and eviction uses a max-heap keyed by (metric, id) ascending
// — the Open Question in spec.md §9 resolves the online/batched tie-break
// disagreement in favour of batched semantics, so Online's heap orders on
// the same (metric, id) pair as Batched's sort, not on insertion order.
type Online[ID cmp.Ordered] struct {
	byID   map[ID]*onlineNode[ID]
	heap   onlineHeap[ID]
	sort   []Entry[ID] // populated by Freeze, valid until the next Insert/Unfreeze
	frozen bool
	pinned map[ID]struct{}
	selfID ID
}

type onlineNode[ID cmp.Ordered] struct {
	entry Entry[ID]
	index int // position in heap, maintained by container/heap callbacks
}

// NewOnline returns an empty Online context.
func NewOnline[ID cmp.Ordered]() *Online[ID] {
	return &Online[ID]{byID: make(map[ID]*onlineNode[ID])}
}

// onlineHeap is a max-heap over (metric, id) ascending, i.e. Pop yields the
// entry with the largest metric (ties broken by largest id) — the worst
// entry, per spec.md §4.4's eviction rule.
type onlineHeap[ID cmp.Ordered] []*onlineNode[ID]

func (h onlineHeap[ID]) Len() int { return len(h) }
func (h onlineHeap[ID]) Less(i, j int) bool {
	if h[i].entry.Metric != h[j].entry.Metric {
		return h[i].entry.Metric > h[j].entry.Metric
	}
	return h[i].entry.From > h[j].entry.From
}
func (h onlineHeap[ID]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *onlineHeap[ID]) Push(x any) {
	n := x.(*onlineNode[ID])
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *onlineHeap[ID]) Pop() any {
	old := *h
	n := len(old)
	n1 := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return n1
}

func (c *Online[ID]) Insert(fromID ID, e *export.Export, metric, threshold float64, hoodSize int) {
	c.frozen = false
	if metric >= threshold {
		if n, ok := c.byID[fromID]; ok {
			heap.Remove(&c.heap, n.index)
			delete(c.byID, fromID)
		}
		return
	}
	if n, ok := c.byID[fromID]; ok {
		n.entry.Export = e
		n.entry.Metric = metric
		heap.Fix(&c.heap, n.index)
	} else {
		n := &onlineNode[ID]{entry: Entry[ID]{From: fromID, Export: e, Metric: metric}}
		c.byID[fromID] = n
		heap.Push(&c.heap, n)
	}
	for len(c.heap) > hoodSize {
		worst := c.heap[0]
		if _, isSelfPinned := c.pinned[worst.entry.From]; isSelfPinned {
			// self can never be the sole candidate once another entry
			// exists to evict instead; find next-worst that isn't pinned.
			idx := findNonPinned(c.heap, c.pinned)
			if idx < 0 {
				break
			}
			n := heap.Remove(&c.heap, idx).(*onlineNode[ID])
			delete(c.byID, n.entry.From)
			continue
		}
		n := heap.Pop(&c.heap).(*onlineNode[ID])
		delete(c.byID, n.entry.From)
	}
}

func findNonPinned[ID cmp.Ordered](h onlineHeap[ID], pinned map[ID]struct{}) int {
	worstIdx, worstVal := -1, 0.0
	for i, n := range h {
		if _, ok := pinned[n.entry.From]; ok {
			continue
		}
		if worstIdx < 0 || n.entry.Metric > worstVal ||
			(n.entry.Metric == worstVal && n.entry.From > h[worstIdx].entry.From) {
			worstIdx, worstVal = i, n.entry.Metric
		}
	}
	return worstIdx
}

func (c *Online[ID]) Freeze(hoodSize int, selfID ID) {
	c.selfID = selfID
	c.pinned = map[ID]struct{}{selfID: {}}
	if _, ok := c.byID[selfID]; !ok {
		n := &onlineNode[ID]{entry: Entry[ID]{From: selfID, Export: export.New(), Metric: 0}}
		c.byID[selfID] = n
		heap.Push(&c.heap, n)
	}
	for len(c.heap) > hoodSize {
		idx := findNonPinned(c.heap, c.pinned)
		if idx < 0 {
			break
		}
		n := heap.Remove(&c.heap, idx).(*onlineNode[ID])
		delete(c.byID, n.entry.From)
	}
	entries := make([]Entry[ID], 0, len(c.byID))
	for _, n := range c.byID {
		entries = append(entries, n.entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].From < entries[j].From })
	c.sort = entries
	c.frozen = true
}

func (c *Online[ID]) Unfreeze(selfNow float64, policy Policy[ID], threshold float64) {
	for id, n := range c.byID {
		if _, ok := c.pinned[id]; ok {
			continue
		}
		n.entry.Metric = policy.Update(n.entry.Metric, selfNow)
		if n.entry.Metric >= threshold {
			heap.Remove(&c.heap, n.index)
			delete(c.byID, id)
			continue
		}
		heap.Fix(&c.heap, n.index)
	}
	c.frozen = false
	c.sort = nil
}

func (c *Online[ID]) Align(key trace.Hash) []ID {
	out := make([]ID, 0, len(c.sort))
	for _, e := range c.sort {
		if e.From == c.selfID || export.HasAny(e.Export, key) {
			out = append(out, e.From)
		}
	}
	return out
}

func (c *Online[ID]) Entries() []Entry[ID] {
	return c.sort
}

// ReplaceSelf installs the device's freshly produced export as its own
// context entry (step 4 of the round procedure, spec.md §4.6). Self is
// pinned, so this never triggers eviction, and it is valid to call while
// the context is frozen.
func (c *Online[ID]) ReplaceSelf(selfID ID, e *export.Export, metric float64) {
	if n, ok := c.byID[selfID]; ok {
		n.entry.Export = e
		n.entry.Metric = metric
		if n.index >= 0 && n.index < len(c.heap) {
			heap.Fix(&c.heap, n.index)
		}
	} else {
		n := &onlineNode[ID]{entry: Entry[ID]{From: selfID, Export: e, Metric: metric}}
		c.byID[selfID] = n
		heap.Push(&c.heap, n)
	}
	for i, entry := range c.sort {
		if entry.From == selfID {
			c.sort[i].Export = e
			c.sort[i].Metric = metric
			return
		}
	}
	c.sort = append(c.sort, Entry[ID]{From: selfID, Export: e, Metric: metric})
	sort.Slice(c.sort, func(i, j int) bool { return c.sort[i].From < c.sort[j].From })
}
