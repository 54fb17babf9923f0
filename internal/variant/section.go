package variant

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Limits on variant counts.
const (
	DefaultNumVariants = 100
	MaxNumVariants     = 1000
	MaxUniqueVariants  = 10_000_000

	// uniqueShuffleSeed keys the generator that orders unique
	// configurations. It is fixed so every section sees the same order.
	uniqueShuffleSeed = "0"
)

// Mode distinguishes how variants map to configurations.
type Mode string

const (
	ModeUnique      Mode = "unique"
	ModeIndependent Mode = "independent"
)

// Config is a section's variant declaration.
type Config struct {
	// NumVariants defaults to DefaultNumVariants and is clamped to
	// [1, MaxNumVariants].
	NumVariants int

	// VariantNames default to "a", "b", ... Names are case-insensitive.
	VariantNames []string

	// Seeds default to "1", "2", ...
	Seeds []string

	VariantsToInclude []string
	VariantsToExclude []string

	UniqueVariants bool

	// UniqueCap bounds unique-mode enumeration. Zero means
	// MaxUniqueVariants.
	UniqueCap int
}

// Counter reports the number of unique configurations of a section's
// randomized content. ok is false when the content cannot enumerate them.
type Counter func() (n int, ok bool)

// Variant is one resolved variant.
type Variant struct {
	// Index is the 1-based position in the declared variant list.
	Index int
	Name  string
	Seed  string

	// UniqueIndex is the 1-based configuration index in unique mode and 0
	// in independent mode.
	UniqueIndex int
}

// Section is the resolved variant list for a section.
type Section struct {
	Mode        Mode
	NumVariants int
	Variants    []Variant
	Warnings    []string
}

// ByIndex returns the variant at a 1-based request index, wrapping modulo
// the number of included variants.
func (s Section) ByIndex(i int) (Variant, bool) {
	n := len(s.Variants)
	if n == 0 {
		return Variant{}, false
	}
	i = ((i-1)%n + n) % n
	return s.Variants[i], true
}

// ByName looks a variant up by name.
func (s Section) ByName(name string) (Variant, bool) {
	name = strings.ToLower(name)
	for _, v := range s.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// DetermineVariantsForSection resolves cfg into a concrete variant list.
// Unique mode is attempted when requested; it falls back to independent
// mode when count is nil, declines, or reports more configurations than the
// cap. When fewer unique configurations exist than requested, the number of
// variants shrinks to match.
func DetermineVariantsForSection(cfg Config, count Counter) Section {
	var sec Section

	numVariants := cfg.NumVariants
	if numVariants == 0 {
		numVariants = DefaultNumVariants
	}
	if numVariants < 1 {
		sec.Warnings = append(sec.Warnings, fmt.Sprintf("numVariants %d raised to 1", numVariants))
		numVariants = 1
	}
	if numVariants > MaxNumVariants {
		sec.Warnings = append(sec.Warnings, fmt.Sprintf("numVariants %d lowered to %d", numVariants, MaxNumVariants))
		numVariants = MaxNumVariants
	}

	mode := ModeIndependent
	var numUnique int
	if cfg.UniqueVariants {
		limit := cfg.UniqueCap
		if limit <= 0 {
			limit = MaxUniqueVariants
		}
		switch n, ok := callCounter(count); {
		case !ok:
			sec.Warnings = append(sec.Warnings, "unique variants unavailable, using independent seeds")
		case n > limit:
			sec.Warnings = append(sec.Warnings, fmt.Sprintf("%d unique variants exceed cap %d, using independent seeds", n, limit))
		case n < 1:
			sec.Warnings = append(sec.Warnings, "no unique variants, using independent seeds")
		default:
			mode = ModeUnique
			numUnique = n
			if n < numVariants {
				numVariants = n
			}
		}
	}

	names := variantNames(cfg.VariantNames, numVariants)
	seeds := variantSeeds(cfg.Seeds, numVariants)

	included, warnings := filterVariants(names, cfg.VariantsToInclude, cfg.VariantsToExclude)
	sec.Warnings = append(sec.Warnings, warnings...)

	sec.Mode = mode
	sec.NumVariants = numVariants
	sec.Variants = make([]Variant, 0, len(included))
	for _, idx := range included {
		sec.Variants = append(sec.Variants, Variant{Index: idx + 1, Name: names[idx], Seed: seeds[idx]})
	}

	if mode == ModeUnique {
		order := NewRNG(uniqueShuffleSeed).ShufflePrefix(numUnique, len(sec.Variants))
		for i := range sec.Variants {
			sec.Variants[i].UniqueIndex = order[i]
		}
	}
	return sec
}

func callCounter(count Counter) (int, bool) {
	if count == nil {
		return 0, false
	}
	return count()
}

func variantNames(declared []string, n int) []string {
	names := make([]string, n)
	for i := range names {
		if i < len(declared) && declared[i] != "" {
			names[i] = strings.ToLower(declared[i])
		} else {
			names[i] = IndexToLetters(i + 1)
		}
	}
	return names
}

func variantSeeds(declared []string, n int) []string {
	seeds := make([]string, n)
	for i := range seeds {
		if i < len(declared) && declared[i] != "" {
			seeds[i] = declared[i]
		} else {
			seeds[i] = strconv.Itoa(i + 1)
		}
	}
	return seeds
}

// filterVariants returns the 0-based positions kept by the include and
// exclude lists. An include list that keeps nothing is ignored.
func filterVariants(names, include, exclude []string) ([]int, []string) {
	var warnings []string
	lower := func(xs []string) []string {
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = strings.ToLower(x)
		}
		return out
	}
	include, exclude = lower(include), lower(exclude)

	for _, name := range include {
		if !slices.Contains(names, name) {
			warnings = append(warnings, fmt.Sprintf("variantsToInclude names unknown variant %q", name))
		}
	}

	var kept []int
	for i, name := range names {
		if len(include) > 0 && !slices.Contains(include, name) {
			continue
		}
		if slices.Contains(exclude, name) {
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) == 0 {
		warnings = append(warnings, "variant filters exclude every variant, ignoring them")
		kept = make([]int, len(names))
		for i := range kept {
			kept[i] = i
		}
	}
	return kept, warnings
}

// IndexToLetters converts a 1-based index into the sequence a..z, aa..az,
// ba..
func IndexToLetters(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('a'+n%26))
		n /= 26
	}
	slices.Reverse(b)
	return string(b)
}
