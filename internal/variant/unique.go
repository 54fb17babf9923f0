package variant

// CountSelections returns the number of distinct ordered selections of k
// values from n, with or without replacement. ok is false when the count
// exceeds limit or the selection is impossible.
func CountSelections(n, k int, withReplacement bool, limit int) (int, bool) {
	if n < 1 || k < 0 || (!withReplacement && k > n) {
		return 0, false
	}
	total := 1
	for i := 0; i < k; i++ {
		factor := n
		if !withReplacement {
			factor = n - i
		}
		if total > limit/factor {
			return 0, false
		}
		total *= factor
	}
	return total, true
}

// SelectionForIndex decodes a 1-based configuration index, as counted by
// CountSelections, into k 0-based positions in [0, n).
func SelectionForIndex(index, n, k int, withReplacement bool) []int {
	if k == 0 || n < 1 {
		return nil
	}
	rem := index - 1
	out := make([]int, k)
	if withReplacement {
		for i := k - 1; i >= 0; i-- {
			out[i] = rem % n
			rem /= n
		}
		return out
	}

	// Mixed radix n, n-1, ..., n-k+1, then map digits onto the remaining
	// unused positions.
	digits := make([]int, k)
	for i := k - 1; i >= 0; i-- {
		base := n - i
		digits[i] = rem % base
		rem /= base
	}
	used := make([]bool, n)
	for i, d := range digits {
		for p := 0; p < n; p++ {
			if used[p] {
				continue
			}
			if d == 0 {
				out[i] = p
				used[p] = true
				break
			}
			d--
		}
	}
	return out
}

// CombineCounts multiplies per-descendant configuration counts. ok is false
// on overflow past limit or when any count is unknown (<= 0).
func CombineCounts(counts []int, limit int) (int, bool) {
	total := 1
	for _, c := range counts {
		if c <= 0 {
			return 0, false
		}
		if total > limit/c {
			return 0, false
		}
		total *= c
	}
	return total, true
}

// SplitIndex decodes a 1-based combined index into 1-based indices for
// each descendant, first descendant most significant.
func SplitIndex(index int, counts []int) []int {
	rem := index - 1
	out := make([]int, len(counts))
	for i := len(counts) - 1; i >= 0; i-- {
		c := max(counts[i], 1)
		out[i] = rem%c + 1
		rem /= c
	}
	return out
}
