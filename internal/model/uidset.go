package model

import "sort"

// UIDSet is an unordered set of record UIDs.
type UIDSet map[string]struct{}

// NewUIDSet builds a set from the given UIDs, collapsing duplicates.
func NewUIDSet(uids ...string) UIDSet {
	s := make(UIDSet, len(uids))
	for _, u := range uids {
		s.Add(u)
	}
	return s
}

func (s UIDSet) Add(uid string) { s[uid] = struct{}{} }

func (s UIDSet) Has(uid string) bool {
	_, ok := s[uid]
	return ok
}

func (s UIDSet) Len() int { return len(s) }

// Minus returns the UIDs in s that are not in o.
func (s UIDSet) Minus(o UIDSet) UIDSet {
	out := make(UIDSet)
	for u := range s {
		if !o.Has(u) {
			out.Add(u)
		}
	}
	return out
}

// Equal reports set equality.
func (s UIDSet) Equal(o UIDSet) bool {
	if len(s) != len(o) {
		return false
	}
	for u := range s {
		if !o.Has(u) {
			return false
		}
	}
	return true
}

// Intersects reports whether any UID is in both sets.
func (s UIDSet) Intersects(o UIDSet) bool {
	for u := range s {
		if o.Has(u) {
			return true
		}
	}
	return false
}

// Intersect returns the UIDs in both sets.
func (s UIDSet) Intersect(o UIDSet) UIDSet {
	out := make(UIDSet)
	for u := range s {
		if o.Has(u) {
			out.Add(u)
		}
	}
	return out
}

// Sorted returns the UIDs in lexical order.
func (s UIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
