// Package pathing implements the risk-weighted route planner: an indexed
// priority queue, a bidirectional heuristic grid search, and the
// alternative-route generator that derives the distance/risk Pareto
// frontier.
package pathing

import "github.com/varun99015/stellarroute/internal/terrain"

// cellQueue is a min-heap of cells keyed by priority, with an index map
// for O(log n) decrease-key. One queue backs each search frontier.
type cellQueue struct {
	cells      []terrain.Cell
	priorities []float64
	index      map[terrain.Cell]int // cell -> heap slot
}

func newCellQueue() *cellQueue {
	return &cellQueue{index: make(map[terrain.Cell]int)}
}

// Len returns the number of queued cells.
func (q *cellQueue) Len() int { return len(q.cells) }

// Empty reports whether the queue holds no cells.
func (q *cellQueue) Empty() bool { return len(q.cells) == 0 }

// Clear drops all queued cells.
func (q *cellQueue) Clear() {
	q.cells = q.cells[:0]
	q.priorities = q.priorities[:0]
	q.index = make(map[terrain.Cell]int)
}

// Contains reports whether c is currently queued.
func (q *cellQueue) Contains(c terrain.Cell) bool {
	_, ok := q.index[c]
	return ok
}

// MinPriority returns the smallest priority in the queue, or ok=false
// when empty.
func (q *cellQueue) MinPriority() (float64, bool) {
	if len(q.priorities) == 0 {
		return 0, false
	}
	return q.priorities[0], true
}

// Push enqueues c with the given priority. If c is already queued the
// call degrades to Update.
func (q *cellQueue) Push(c terrain.Cell, priority float64) {
	if i, ok := q.index[c]; ok {
		q.updateAt(i, priority)
		return
	}
	q.cells = append(q.cells, c)
	q.priorities = append(q.priorities, priority)
	q.index[c] = len(q.cells) - 1
	q.siftUp(len(q.cells) - 1)
}

// Pop removes and returns the minimum-priority cell. ok=false on an
// empty queue; no sentinel cell is ever fabricated.
func (q *cellQueue) Pop() (terrain.Cell, bool) {
	if len(q.cells) == 0 {
		return terrain.Cell{}, false
	}
	top := q.cells[0]
	last := len(q.cells) - 1
	q.swap(0, last)
	q.cells = q.cells[:last]
	q.priorities = q.priorities[:last]
	delete(q.index, top)
	if last > 0 {
		q.siftDown(0)
	}
	return top, true
}

// Update changes the priority of a queued cell, re-heapifying locally:
// sift up when the priority improved, down when it worsened. Updating an
// absent cell enqueues it.
func (q *cellQueue) Update(c terrain.Cell, priority float64) {
	i, ok := q.index[c]
	if !ok {
		q.Push(c, priority)
		return
	}
	q.updateAt(i, priority)
}

func (q *cellQueue) updateAt(i int, priority float64) {
	old := q.priorities[i]
	q.priorities[i] = priority
	if priority < old {
		q.siftUp(i)
	} else if priority > old {
		q.siftDown(i)
	}
}

func (q *cellQueue) swap(i, j int) {
	q.cells[i], q.cells[j] = q.cells[j], q.cells[i]
	q.priorities[i], q.priorities[j] = q.priorities[j], q.priorities[i]
	q.index[q.cells[i]] = i
	q.index[q.cells[j]] = j
}

func (q *cellQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if q.priorities[i] >= q.priorities[parent] {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *cellQueue) siftDown(i int) {
	n := len(q.cells)
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i
		if left < n && q.priorities[left] < q.priorities[smallest] {
			smallest = left
		}
		if right < n && q.priorities[right] < q.priorities[smallest] {
			smallest = right
		}
		if smallest == i {
			return
		}
		q.swap(i, smallest)
		i = smallest
	}
}
