package history

import "github.com/google/btree"

// Point is one sample of a reconstructed price series: a millisecond
// timestamp and a probability-scale price.
type Point struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

func lessByTime(a, b Point) bool { return a.T < b.T }

// pointTree keeps points ordered by timestamp with one value per timestamp.
// Insert semantics differ between the two reconstruction paths, so both are
// offered explicitly.
type pointTree struct {
	tree *btree.BTreeG[Point]
}

func newPointTree() *pointTree {
	return &pointTree{tree: btree.NewG(32, lessByTime)}
}

// put stores p, overwriting any point at the same timestamp
// (last-write-wins, used for interval-bucket aggregation).
func (pt *pointTree) put(p Point) {
	pt.tree.ReplaceOrInsert(p)
}

// putIfAbsent stores p only when no point at the same timestamp exists yet
// (first-kept-wins, used when merging overlapping chunks).
func (pt *pointTree) putIfAbsent(p Point) {
	if _, found := pt.tree.Get(Point{T: p.T}); found {
		return
	}
	pt.tree.ReplaceOrInsert(p)
}

func (pt *pointTree) len() int { return pt.tree.Len() }

// points returns the samples in ascending timestamp order.
func (pt *pointTree) points() []Point {
	out := make([]Point, 0, pt.tree.Len())
	pt.tree.Ascend(func(p Point) bool {
		out = append(out, p)
		return true
	})
	return out
}

// toMillis normalizes an epoch timestamp to milliseconds.
func toMillis(ts int64) int64 {
	if ts < msThreshold {
		return ts * 1000
	}
	return ts
}
