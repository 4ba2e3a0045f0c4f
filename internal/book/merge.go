package book

import "container/heap"

// Comparator reports whether a must be produced before b in the desired
// output order. MergeTopN uses one comparator for both heap ordering and
// tie-breaking, so the result is a pure function of the inputs, never of
// heap internals or map iteration order.
type Comparator func(a, b Level) bool

// AscendingByPrice orders asks: ascending price, ties broken by amount
// then by exchange name.
func AscendingByPrice(a, b Level) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.Amount != b.Amount {
		return a.Amount < b.Amount
	}
	return a.Exchange < b.Exchange
}

// DescendingByPrice orders bids: the price comparison in AscendingByPrice
// inverted, with the same deterministic tie-break. Both sides share one
// merge code path and differ only in which comparator they hand it.
func DescendingByPrice(a, b Level) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if a.Amount != b.Amount {
		return a.Amount < b.Amount
	}
	return a.Exchange < b.Exchange
}

// MergeTopN performs a bounded k-way merge of k pre-sorted inputs (each
// already ordered per cmp) and returns the first n elements of a full
// stable merge of all inputs under cmp, without materializing or sorting
// the concatenation.
//
// At most len(inputs) elements ever live in the internal priority queue;
// total comparisons are O((n + k) log k). Inputs are read-only: MergeTopN
// never mutates or reorders them, so calling it twice on the same inputs
// yields an identical result.
func MergeTopN(inputs [][]Level, n int, cmp Comparator) []Level {
	if n <= 0 {
		return nil
	}

	h := &mergeHeap{cmp: cmp}
	for i, in := range inputs {
		if len(in) > 0 {
			h.items = append(h.items, heapItem{level: in[0], src: i, next: 1})
		}
	}
	heap.Init(h)

	result := make([]Level, 0, n)
	for h.Len() > 0 && len(result) < n {
		top := heap.Pop(h).(heapItem)
		result = append(result, top.level)

		src := inputs[top.src]
		if top.next < len(src) {
			heap.Push(h, heapItem{level: src[top.next], src: top.src, next: top.next + 1})
		}
	}
	return result
}

// heapItem tags a candidate level with the input it came from and the
// index of that input's next not-yet-considered element.
type heapItem struct {
	level Level
	src   int
	next  int
}

// mergeHeap is a container/heap.Interface over the current heads of all
// non-exhausted inputs, ordered by the caller-supplied comparator. For
// bids cmp is DescendingByPrice (a max-heap on price); for asks it is
// AscendingByPrice (a min-heap). Same code path, different projection;
// there is no need for a separate type per side.
type mergeHeap struct {
	items []heapItem
	cmp   Comparator
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	return h.cmp(h.items[i].level, h.items[j].level)
}

func (h *mergeHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *mergeHeap) Push(x any) {
	h.items = append(h.items, x.(heapItem))
}

func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
