package drill

import "slices"

// Adjacent returns up to num neighbours on each side of pivot in sorted,
// lower neighbours first. It returns nil when pivot is not in sorted.
func Adjacent(sorted []Band, pivot Band, num int) []Band {
	i := slices.Index(sorted, pivot)
	if i < 0 || num <= 0 {
		return nil
	}
	lo := max(0, i-num)
	hi := min(len(sorted), i+1+num)
	out := make([]Band, 0, hi-lo-1)
	out = append(out, sorted[lo:i]...)
	return append(out, sorted[i+1:hi]...)
}
