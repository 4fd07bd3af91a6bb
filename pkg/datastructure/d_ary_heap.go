package datastructure

import (
	"errors"

	"github.com/lintas-routing/balancegraph/pkg"
)

type PriorityQueueNode[T any] struct {
	rank float64
	item T
}

func NewPriorityQueueNode[T any](rank float64, item T) PriorityQueueNode[T] {
	return PriorityQueueNode[T]{rank: rank, item: item}
}

func (p PriorityQueueNode[T]) GetItem() T {
	return p.item
}

func (p PriorityQueueNode[T]) GetRank() float64 {
	return p.rank
}

// MinHeap d-ary heap priorityqueue. Decrease-key is done by lazy deletion:
// callers push duplicate nodes and skip stale ones on pop, so nodes carry no
// back-pointers into the heap.
type MinHeap[T any] struct {
	heap []PriorityQueueNode[T]
	d    int
	tie  func(a, b T) bool
}

func NewBinaryHeap[T any]() *MinHeap[T] {
	return NewdAryHeap[T](2, nil)
}

func NewFourAryHeap[T any]() *MinHeap[T] {
	return NewdAryHeap[T](4, nil)
}

// NewFourAryHeapWithTieBreak orders equal ranks by less, which keeps pops
// deterministic for equal-cost labels.
func NewFourAryHeapWithTieBreak[T any](less func(a, b T) bool) *MinHeap[T] {
	return NewdAryHeap[T](4, less)
}

func NewdAryHeap[T any](d int, tie func(a, b T) bool) *MinHeap[T] {
	return &MinHeap[T]{
		heap: make([]PriorityQueueNode[T], 0),
		d:    d,
		tie:  tie,
	}
}

func (h *MinHeap[T]) Preallocate(maxSearchSize int) {
	h.heap = make([]PriorityQueueNode[T], 0, maxSearchSize)
}

func (h *MinHeap[T]) less(i, j int) bool {
	if h.heap[i].rank != h.heap[j].rank {
		return h.heap[i].rank < h.heap[j].rank
	}
	if h.tie == nil {
		return false
	}
	return h.tie(h.heap[i].item, h.heap[j].item)
}

func (h *MinHeap[T]) parent(index int) int {
	return (index - 1) / h.d
}

func (h *MinHeap[T]) heapifyUp(index int) {
	for index != 0 && h.less(index, h.parent(index)) {
		h.swap(index, h.parent(index))
		index = h.parent(index)
	}
}

func (h *MinHeap[T]) heapifyDown(index int) {
	for {
		leftMostChild := index*h.d + 1
		if leftMostChild >= len(h.heap) {
			return
		}

		sentinel := leftMostChild + h.d
		if sentinel > len(h.heap) {
			sentinel = len(h.heap)
		}

		smallest := leftMostChild
		for i := leftMostChild + 1; i < sentinel; i++ {
			if h.less(i, smallest) {
				smallest = i
			}
		}

		if !h.less(smallest, index) {
			return
		}
		h.swap(index, smallest)
		index = smallest
	}
}

func (h *MinHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
}

func (h *MinHeap[T]) IsEmpty() bool {
	return len(h.heap) == 0
}

func (h *MinHeap[T]) Size() int {
	return len(h.heap)
}

func (h *MinHeap[T]) Clear() {
	h.heap = h.heap[:0]
}

func (h *MinHeap[T]) GetMin() (PriorityQueueNode[T], error) {
	if h.IsEmpty() {
		return PriorityQueueNode[T]{}, errors.New("heap is empty")
	}
	return h.heap[0], nil
}

func (h *MinHeap[T]) GetMinRank() float64 {
	if h.IsEmpty() {
		return 2 * pkg.INF_WEIGHT
	}
	return h.heap[0].rank
}

func (h *MinHeap[T]) Insert(key PriorityQueueNode[T]) {
	h.heap = append(h.heap, key)
	h.heapifyUp(h.Size() - 1)
}

func (h *MinHeap[T]) ExtractMin() (PriorityQueueNode[T], error) {
	if h.IsEmpty() {
		return PriorityQueueNode[T]{}, errors.New("heap is empty")
	}
	root := h.heap[0]

	h.swap(0, h.Size()-1)
	h.heap = h.heap[:h.Size()-1]
	if len(h.heap) > 0 {
		h.heapifyDown(0)
	}

	return root, nil
}
