package common

import (
	"encoding/json"

	"golang.org/x/exp/slices"
)

func byStart(a, b Range) int {
	return a.Start - b.Start
}

// an empty set goes over the wire as [] rather than null
func (s RangeSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Range(s))
}

// Normalize returns a sorted, disjoint copy of rs. Empty and inverted
// ranges are dropped and a range overlapping an earlier-starting one
// loses its overlapping portion.
func Normalize(rs RangeSet) RangeSet {
	res := make(RangeSet, 0, len(rs))
	for _, r := range rs {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.Start < r.End {
			res = append(res, r)
		}
	}

	slices.SortStableFunc(res, byStart)

	out := res[:0]
	for _, r := range res {
		if n := len(out); n > 0 && r.Start < out[n-1].End {
			r.Start = out[n-1].End
			if r.Start >= r.End {
				continue
			}
		}
		out = append(out, r)
	}

	return out
}

// ClipTo drops everything at or past offset n.
func ClipTo(rs RangeSet, n int) RangeSet {
	res := make(RangeSet, 0, len(rs))
	for _, r := range rs {
		if r.End > n {
			r.End = n
		}
		if r.Start < r.End {
			res = append(res, r)
		}
	}
	return res
}

// Merge coalesces touching or overlapping ranges with the same owner.
// It never joins ranges of different owners and is idempotent.
func Merge(rs RangeSet) RangeSet {
	if len(rs) == 0 {
		return RangeSet{}
	}

	sorted := append(RangeSet{}, rs...)
	slices.SortStableFunc(sorted, byStart)

	res := RangeSet{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &res[len(res)-1]
		if cur.Owner == last.Owner && cur.Start <= last.End {
			last.End = max(last.End, cur.End)
		} else {
			res = append(res, cur)
		}
	}

	return res
}

// Reconcile moves rs across the edit described by d and attributes the
// freshly inserted text to actor.
//
// Existing ranges are remapped against [ChangeStart, OldEnd) first and the
// new range is added afterwards, so it is never clipped by the remap. A
// range strictly containing the edit is split around the new text.
func Reconcile(rs RangeSet, d Diff, actor ActorId) RangeSet {
	rs = Normalize(rs)
	if d.IsNoop() {
		return rs
	}

	res := make(RangeSet, 0, len(rs)+2)
	for _, r := range rs {
		switch {
		case r.End <= d.ChangeStart:
			// before
		case r.Start >= d.OldEnd:
			r.Start += d.Delta
			r.End += d.Delta
		case r.Start < d.ChangeStart && r.End > d.OldEnd:
			r.End += d.Delta
		case r.Start >= d.ChangeStart && r.End <= d.OldEnd:
			continue
		case r.Start < d.ChangeStart:
			r.End = d.ChangeStart
		default:
			r.Start = d.NewEnd
			r.End += d.Delta
		}

		if r.Start < r.End {
			res = append(res, r)
		}
	}

	if d.InsertedLength > 0 {
		res = carve(res, Range{Start: d.ChangeStart, End: d.NewEnd, Owner: actor})
	}

	return Merge(res)
}

// adds fresh to rs, cutting its span out of any range it overlaps
func carve(rs RangeSet, fresh Range) RangeSet {
	res := make(RangeSet, 0, len(rs)+2)
	for _, r := range rs {
		if r.End <= fresh.Start || r.Start >= fresh.End {
			res = append(res, r)
			continue
		}
		if r.Start < fresh.Start {
			res = append(res, Range{Start: r.Start, End: fresh.Start, Owner: r.Owner})
		}
		if r.End > fresh.End {
			res = append(res, Range{Start: fresh.End, End: r.End, Owner: r.Owner})
		}
	}
	return append(res, fresh)
}

// Policy decides deletions. AllowUnowned lets ordinary actors delete text
// with no recorded owner; the zero value is fail-closed.
type Policy struct {
	AllowUnowned bool
}

// CanDelete reports whether actor may delete [start, end). The room owner
// may delete anything; everyone else only text owned by themselves or by
// the room owner. An empty span deletes nothing and is always allowed, so
// callers handling a backspace at caret p must pass [p-1, p).
func (p Policy) CanDelete(rs RangeSet, start, end int, actor, roomOwner ActorId) bool {
	if actor != "" && actor == roomOwner {
		return true
	}
	if end < start {
		start, end = end, start
	}
	if start == end {
		return true
	}

	cursor := start
	for _, r := range Normalize(rs) {
		if r.End <= start {
			continue
		}
		if r.Start >= end {
			break
		}
		if r.Start > cursor && !p.AllowUnowned {
			return false
		}
		if r.Owner != actor && r.Owner != roomOwner {
			return false
		}
		cursor = max(cursor, r.End)
	}

	return cursor >= end || p.AllowUnowned
}

// CanDelete evaluates with the fail-closed policy.
func CanDelete(rs RangeSet, start, end int, actor, roomOwner ActorId) bool {
	return Policy{}.CanDelete(rs, start, end, actor, roomOwner)
}
