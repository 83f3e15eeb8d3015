// Package interval implements canonical sets of half-open [start, end)
// minute-of-day intervals: sorted by start, pairwise disjoint, adjacent
// intervals coalesced.
package interval

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvertedInterval = errors.New("interval start must be before end")

// Span is a half-open [Start, End) range in minutes of day.
type Span struct {
	Start int
	End   int
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Overlaps reports whether two half-open spans intersect.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the span length in minutes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Set is a canonical interval set. The zero value is the empty set.
type Set []Span

// Normalize builds a canonical set from arbitrary spans: sorted, overlaps
// merged, adjacent spans coalesced. Fails if any span has start >= end.
func Normalize(spans []Span) (Set, error) {
	for _, s := range spans {
		if s.Start >= s.End {
			return nil, fmt.Errorf("%w: %s", ErrInvertedInterval, s)
		}
	}
	if len(spans) == 0 {
		return nil, nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := Set{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Union returns the canonical union of two canonical sets.
func Union(a, b Set) Set {
	merged := make([]Span, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	out, _ := Normalize(merged)
	return out
}

// Difference returns a minus b, canonical.
func Difference(a, b Set) Set {
	var out Set
	for _, s := range a {
		remaining := []Span{s}
		for _, cut := range b {
			var next []Span
			for _, r := range remaining {
				if !r.Overlaps(cut) {
					next = append(next, r)
					continue
				}
				if cut.Start > r.Start {
					next = append(next, Span{Start: r.Start, End: cut.Start})
				}
				if cut.End < r.End {
					next = append(next, Span{Start: cut.End, End: r.End})
				}
			}
			remaining = next
		}
		out = append(out, remaining...)
	}
	// Pieces of distinct source spans cannot overlap, but adjacent pieces may
	// need coalescing if a was not strictly canonical.
	norm, _ := Normalize(out)
	return norm
}

// Intersection returns the common coverage of two canonical sets.
func Intersection(a, b Set) Set {
	var out Set
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Start, b[j].Start)
		hi := min(a[i].End, b[j].End)
		if lo < hi {
			out = append(out, Span{Start: lo, End: hi})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// Contains reports whether s is fully covered by the set. A single covering
// span is required; canonical sets have no adjacent spans, so coverage split
// across two spans cannot happen.
func (set Set) Contains(s Span) bool {
	for _, t := range set {
		if t.Start <= s.Start && s.End <= t.End {
			return true
		}
		if t.Start > s.Start {
			break
		}
	}
	return false
}

// Overlaps reports whether s intersects any span of the set.
func (set Set) Overlaps(s Span) bool {
	for _, t := range set {
		if t.Overlaps(s) {
			return true
		}
		if t.Start >= s.End {
			break
		}
	}
	return false
}

// IsEmpty reports whether the set covers nothing.
func (set Set) IsEmpty() bool {
	return len(set) == 0
}
