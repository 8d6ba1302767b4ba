package resource

import "container/heap"

// Priority queue of activities with deterministic ordering.
// Order by: finish time, then sequence number.
type activityHeap struct {
	activities []*Activity
}

func newActivityHeap() *activityHeap {
	h := &activityHeap{activities: make([]*Activity, 0)}
	heap.Init(h)
	return h
}

func (h *activityHeap) Len() int {
	return len(h.activities)
}

func (h *activityHeap) Less(i, j int) bool {
	ai, aj := h.activities[i], h.activities[j]
	if ai.Finish != aj.Finish {
		return ai.Finish < aj.Finish
	}
	return ai.ID < aj.ID
}

func (h *activityHeap) Swap(i, j int) {
	h.activities[i], h.activities[j] = h.activities[j], h.activities[i]
	h.activities[i].index = i
	h.activities[j].index = j
}

func (h *activityHeap) Push(x interface{}) {
	a := x.(*Activity)
	a.index = len(h.activities)
	h.activities = append(h.activities, a)
}

func (h *activityHeap) Pop() interface{} {
	old := h.activities
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	h.activities = old[0 : n-1]
	return item
}

func (h *activityHeap) schedule(a *Activity) {
	heap.Push(h, a)
}

func (h *activityHeap) remove(a *Activity) {
	if a.index >= 0 && a.index < len(h.activities) && h.activities[a.index] == a {
		heap.Remove(h, a.index)
	}
}

func (h *activityHeap) popNext() *Activity {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Activity)
}

func (h *activityHeap) peek() *Activity {
	if h.Len() == 0 {
		return nil
	}
	return h.activities[0]
}
