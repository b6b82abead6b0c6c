package generic

// A Set holds unique values.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts an item, returning true if it wasn't already present.
func (s Set[T]) Add(item T) bool {
	if _, found := s[item]; found {
		return false
	}
	s[item] = struct{}{}
	return true
}

// Contains reports whether every given item is present.
func (s Set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := s[item]; !found {
			return false
		}
	}
	return true
}

// Remove deletes an item, returning true if it was present.
func (s Set[T]) Remove(item T) bool {
	if _, found := s[item]; !found {
		return false
	}
	delete(s, item)
	return true
}

func (s Set[T]) Count() int {
	return len(s)
}

func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, len(s))
	for item := range s {
		slice = append(slice, item)
	}
	return slice
}
