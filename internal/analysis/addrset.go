package analysis

import "slices"

// AddrSet is a sorted set of instruction or data addresses.
type AddrSet struct {
	addrs []uint32
}

// Insert adds a to the set. Reports whether a was not already present.
func (s *AddrSet) Insert(a uint32) bool {
	i, found := slices.BinarySearch(s.addrs, a)
	if found {
		return false
	}
	s.addrs = slices.Insert(s.addrs, i, a)
	return true
}

// Contains reports whether a is in the set.
func (s *AddrSet) Contains(a uint32) bool {
	_, found := slices.BinarySearch(s.addrs, a)
	return found
}

// Len returns the number of addresses in the set.
func (s *AddrSet) Len() int { return len(s.addrs) }

// Min returns the smallest address in the set.
func (s *AddrSet) Min() (uint32, bool) {
	if len(s.addrs) == 0 {
		return 0, false
	}
	return s.addrs[0], true
}

// NextAfter returns the smallest address strictly greater than a.
func (s *AddrSet) NextAfter(a uint32) (uint32, bool) {
	i, found := slices.BinarySearch(s.addrs, a)
	if found {
		i++
	}
	if i >= len(s.addrs) {
		return 0, false
	}
	return s.addrs[i], true
}

// DeleteMax removes every address less than or equal to limit and returns the
// removed addresses in ascending order.
func (s *AddrSet) DeleteMax(limit uint32) []uint32 {
	i, found := slices.BinarySearch(s.addrs, limit)
	if found {
		i++
	}
	removed := slices.Clone(s.addrs[:i])
	s.addrs = s.addrs[i:]
	return removed
}

// All returns the addresses in ascending order. The returned slice is the
// set's backing store and must not be modified.
func (s *AddrSet) All() []uint32 { return s.addrs }
