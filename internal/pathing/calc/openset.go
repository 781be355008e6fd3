package calc

import "fmt"

// openSet is a binary min-heap of arena indices keyed on combinedCost.
// Slot 0 is unused so that a node's heapPos of 0 means "not open".
type openSet struct {
	a    *arena
	heap []int32
	size int
}

func newOpenSet(a *arena) *openSet {
	return &openSet{a: a, heap: make([]int32, 1024)}
}

func (o *openSet) isEmpty() bool { return o.size == 0 }

func (o *openSet) insert(i int32) {
	n := o.a.at(i)
	if n.heapPos != 0 {
		panic(fmt.Sprintf("calc: node %v inserted while open at %d", n.pos(), n.heapPos))
	}
	if o.size >= len(o.heap)-1 {
		grown := make([]int32, len(o.heap)<<1)
		copy(grown, o.heap)
		o.heap = grown
	}
	o.size++
	o.heap[o.size] = i
	n.heapPos = int32(o.size)
	o.update(i)
}

// update restores heap order after the node's combinedCost decreased.
func (o *openSet) update(i int32) {
	n := o.a.at(i)
	index := int(n.heapPos)
	if index < 1 || index > o.size || o.heap[index] != i {
		panic(fmt.Sprintf("calc: heap position %d of node %v is corrupt", index, n.pos()))
	}
	c := n.combinedCost
	parent := index >> 1
	for index > 1 && o.a.at(o.heap[parent]).combinedCost > c {
		p := o.heap[parent]
		o.heap[index] = p
		o.heap[parent] = i
		o.a.at(p).heapPos = int32(index)
		n.heapPos = int32(parent)
		index = parent
		parent = index >> 1
	}
}

func (o *openSet) removeLowest() int32 {
	if o.size == 0 {
		panic("calc: removeLowest on empty open set")
	}
	result := o.heap[1]
	last := o.heap[o.size]
	o.heap[1] = last
	o.a.at(last).heapPos = 1
	o.heap[o.size] = 0
	o.size--
	o.a.at(result).heapPos = 0
	if o.size < 2 {
		return result
	}
	val := o.a.at(last)
	c := val.combinedCost
	index, child := 1, 2
	for child <= o.size {
		childCost := o.a.at(o.heap[child]).combinedCost
		if child < o.size {
			if right := o.a.at(o.heap[child+1]).combinedCost; childCost > right {
				child++
				childCost = right
			}
		}
		if c <= childCost {
			break
		}
		ci := o.heap[child]
		o.heap[index] = ci
		o.heap[child] = last
		o.a.at(ci).heapPos = int32(index)
		val.heapPos = int32(child)
		index = child
		child <<= 1
	}
	return result
}
