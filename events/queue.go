package events

// eventHeap orders events by due time. Events due at the same time keep the
// order they were scheduled in.
type eventHeap []*ScheduledEvent

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return earlier(h[i], h[j])
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	evt := x.(*ScheduledEvent)
	evt.index = len(*h)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	evt.index = -1
	*h = old[0 : n-1]

	return evt
}

func earlier(a, b *ScheduledEvent) bool {
	c := a.when.Compare(b.when)
	if c != 0 {
		return c < 0
	}

	return a.seq < b.seq
}
