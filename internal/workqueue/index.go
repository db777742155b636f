package workqueue

import (
	"container/heap"
	"time"
)

// visibleHeap orders visible records by enqueue sequence.
type visibleHeap []*record

func (h visibleHeap) Len() int           { return len(h) }
func (h visibleHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }
func (h visibleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *visibleHeap) Push(x any) {
	r := x.(*record)
	r.heapIdx = len(*h)
	*h = append(*h, r)
}
func (h *visibleHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.heapIdx = -1
	*h = old[:n-1]
	return r
}

// inflightHeap orders in-flight records by (nextVisibleAt, seq).
type inflightHeap []*record

func (h inflightHeap) Len() int { return len(h) }
func (h inflightHeap) Less(i, j int) bool {
	if h[i].nextVisibleAt.Equal(h[j].nextVisibleAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].nextVisibleAt.Before(h[j].nextVisibleAt)
}
func (h inflightHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *inflightHeap) Push(x any) {
	r := x.(*record)
	r.heapIdx = len(*h)
	*h = append(*h, r)
}
func (h *inflightHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.heapIdx = -1
	*h = old[:n-1]
	return r
}

// visibilityIndex tracks which records are receivable now and which are
// hidden until a deadline. It has no lock; the owning queue serializes
// access.
type visibilityIndex struct {
	visible  visibleHeap
	inflight inflightHeap
}

func (x *visibilityIndex) pushVisible(r *record) {
	r.state = stateVisible
	heap.Push(&x.visible, r)
}

// popVisible removes and returns the earliest-enqueued visible record.
func (x *visibilityIndex) popVisible() *record {
	if len(x.visible) == 0 {
		return nil
	}
	return heap.Pop(&x.visible).(*record)
}

func (x *visibilityIndex) pushInFlight(r *record) {
	r.state = stateInFlight
	heap.Push(&x.inflight, r)
}

// fixInFlight restores heap order after r.nextVisibleAt changed.
func (x *visibilityIndex) fixInFlight(r *record) {
	heap.Fix(&x.inflight, r.heapIdx)
}

// remove drops r from whichever heap currently holds it.
func (x *visibilityIndex) remove(r *record) {
	if r.heapIdx < 0 {
		return
	}
	switch r.state {
	case stateVisible:
		heap.Remove(&x.visible, r.heapIdx)
	case stateInFlight:
		heap.Remove(&x.inflight, r.heapIdx)
	}
}

// popDue removes every in-flight record whose deadline is at or before now,
// earliest first.
func (x *visibilityIndex) popDue(now time.Time) []*record {
	var due []*record
	for len(x.inflight) > 0 && !x.inflight[0].nextVisibleAt.After(now) {
		due = append(due, heap.Pop(&x.inflight).(*record))
	}
	return due
}

// earliestDeadline reports the soonest in-flight deadline, if any.
func (x *visibilityIndex) earliestDeadline() (time.Time, bool) {
	if len(x.inflight) == 0 {
		return time.Time{}, false
	}
	return x.inflight[0].nextVisibleAt, true
}

func (x *visibilityIndex) counts() (visible, inflight int) {
	return len(x.visible), len(x.inflight)
}

func (x *visibilityIndex) reset() {
	for _, r := range x.visible {
		r.heapIdx = -1
	}
	for _, r := range x.inflight {
		r.heapIdx = -1
	}
	x.visible = nil
	x.inflight = nil
}
