package common

import "unicode/utf8"

// Diff is the single contiguous region in which two snapshots differ.
// [ChangeStart, OldEnd) of the old text was replaced by
// [ChangeStart, NewEnd) of the new text.
type Diff struct {
	ChangeStart int
	OldEnd      int
	NewEnd      int

	DeletedLength  int
	InsertedLength int
	Delta          int
}

// IsNoop reports whether nothing changed.
func (d Diff) IsNoop() bool {
	return d.DeletedLength == 0 && d.InsertedLength == 0
}

// create a diff between two snapshots by trimming
// the common prefix and then the common suffix
//
// Two disjoint edits between the snapshots come back as
// one region spanning both of them.
func Compute(old, new string) Diff {
	s1 := []rune(old)
	s2 := []rune(new)

	start := 0
	for start < len(s1) && start < len(s2) && s1[start] == s2[start] {
		start++
	}

	// suffix scan stops at start so the two never cross
	i := len(s1)
	j := len(s2)
	for i > start && j > start && s1[i-1] == s2[j-1] {
		i--
		j--
	}

	return Diff{
		ChangeStart:    start,
		OldEnd:         i,
		NewEnd:         j,
		DeletedLength:  i - start,
		InsertedLength: j - start,
		Delta:          (j - start) - (i - start),
	}
}

// replaces the characters [start, end) of s with text,
// clamping the bounds to s
func Splice(s string, start, end int, text string) string {
	r := []rune(s)

	start = clamp(start, 0, len(r))
	end = clamp(end, start, len(r))

	res := make([]rune, 0, len(r)-(end-start)+len(text))
	res = append(res, r[:start]...)
	res = append(res, []rune(text)...)
	res = append(res, r[end:]...)

	return string(res)
}

// Length is the document length in the unit ranges are measured in.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
