// Package hashset provides a minimal generic set.
package hashset

type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return map[T]struct{}{}
}

func SetFromSlice[T comparable](vals []T) Set[T] {
	set := NewSet[T]()
	for _, v := range vals {
		set.Set(v)
	}
	return set
}

func (vs Set[T]) Set(v T) {
	vs[v] = struct{}{}
}

func (vs Set[T]) Has(v T) bool {
	_, ok := vs[v]
	return ok
}

func (vs Set[T]) Len() int {
	return len(vs)
}

func (vs Set[T]) AsSlice() []T {
	slice := make([]T, 0, len(vs))
	for v := range vs {
		slice = append(slice, v)
	}
	return slice
}
