package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ArrayKey identifies one entry of an array state variable: a tuple of
// zero-based integer indices serialized as a comma-joined string.
type ArrayKey string

// KeyOf builds an ArrayKey from indices.
func KeyOf(indices ...int) ArrayKey {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return ArrayKey(strings.Join(parts, ","))
}

// Indices parses the key back into its integer tuple.
func (k ArrayKey) Indices() ([]int, error) {
	if k == "" {
		return nil, fmt.Errorf("empty array key")
	}
	parts := strings.Split(string(k), ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid array key %q", k)
		}
		out[i] = n
	}
	return out, nil
}

// KeysForSize enumerates every key of an array with the given per-dimension
// sizes in row-major order.
func KeysForSize(size []int) []ArrayKey {
	if len(size) == 0 {
		return nil
	}
	total := 1
	for _, s := range size {
		if s <= 0 {
			return nil
		}
		total *= s
	}
	keys := make([]ArrayKey, 0, total)
	idx := make([]int, len(size))
	for n := 0; n < total; n++ {
		keys = append(keys, KeyOf(idx...))
		for d := len(size) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < size[d] {
				break
			}
			idx[d] = 0
		}
	}
	return keys
}

// KeyInSize reports whether k addresses an entry inside size.
func KeyInSize(k ArrayKey, size []int) bool {
	idx, err := k.Indices()
	if err != nil || len(idx) != len(size) {
		return false
	}
	for d, i := range idx {
		if i >= size[d] {
			return false
		}
	}
	return true
}

// ArrayFromKeys assembles a (possibly nested) IRArray from keyed entries.
// Missing entries become IRNull.
func ArrayFromKeys(size []int, entries map[ArrayKey]IRValue) IRArray {
	if len(size) == 0 {
		return IRArray{}
	}
	var build func(prefix []int, dim int) IRArray
	build = func(prefix []int, dim int) IRArray {
		out := make(IRArray, size[dim])
		for i := 0; i < size[dim]; i++ {
			idx := append(append([]int{}, prefix...), i)
			if dim == len(size)-1 {
				v, ok := entries[KeyOf(idx...)]
				if !ok || v == nil {
					v = IRNull{}
				}
				out[i] = v
				continue
			}
			out[i] = build(idx, dim+1)
		}
		return out
	}
	return build(nil, 0)
}

// KeysFromArray flattens a nested IRArray with the given dimensionality
// into keyed entries. A scalar in a one-dimensional slot is accepted as a
// single-entry array.
func KeysFromArray(v IRValue, numDimensions int) map[ArrayKey]IRValue {
	out := make(map[ArrayKey]IRValue)
	if numDimensions < 1 {
		numDimensions = 1
	}
	var walk func(val IRValue, prefix []int, dim int)
	walk = func(val IRValue, prefix []int, dim int) {
		arr, ok := val.(IRArray)
		if !ok {
			if dim == 0 && numDimensions == 1 && !IsNull(val) {
				out[KeyOf(0)] = val
			}
			return
		}
		for i, elem := range arr {
			idx := append(append([]int{}, prefix...), i)
			if dim == numDimensions-1 {
				out[KeyOf(idx...)] = elem
				continue
			}
			walk(elem, idx, dim+1)
		}
	}
	walk(v, nil, 0)
	return out
}
