package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCount(n int) Counter {
	return func() (int, bool) { return n, true }
}

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG("seed-1")
	b := NewRNG("seed-1")
	c := NewRNG("seed-2")

	for i := 0; i < 10; i++ {
		x, y := a.Float64(), b.Float64()
		assert.Equal(t, x, y)
		assert.GreaterOrEqual(t, x, 0.0)
		assert.Less(t, x, 1.0)
	}
	assert.NotEqual(t, NewRNG("seed-1").Uint32(), c.Uint32())
}

func TestShufflePrefix_Distinct(t *testing.T) {
	out := NewRNG("x").ShufflePrefix(1_000_000, 500)
	require.Len(t, out, 500)

	seen := make(map[int]bool)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 1_000_000)
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
}

func TestShufflePrefix_FullPermutation(t *testing.T) {
	out := NewRNG("y").ShufflePrefix(5, 10)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, out)
}

func TestDetermineVariants_Defaults(t *testing.T) {
	sec := DetermineVariantsForSection(Config{}, nil)

	assert.Equal(t, ModeIndependent, sec.Mode)
	assert.Equal(t, DefaultNumVariants, sec.NumVariants)
	require.Len(t, sec.Variants, DefaultNumVariants)
	assert.Equal(t, Variant{Index: 1, Name: "a", Seed: "1"}, sec.Variants[0])
	assert.Equal(t, "z", sec.Variants[25].Name)
	assert.Equal(t, "aa", sec.Variants[26].Name)
	assert.Equal(t, "100", sec.Variants[99].Seed)
	assert.Empty(t, sec.Warnings)
}

func TestDetermineVariants_Clamp(t *testing.T) {
	sec := DetermineVariantsForSection(Config{NumVariants: 5000}, nil)
	assert.Equal(t, MaxNumVariants, sec.NumVariants)
	assert.Len(t, sec.Warnings, 1)

	sec = DetermineVariantsForSection(Config{NumVariants: -3}, nil)
	assert.Equal(t, 1, sec.NumVariants)
	assert.Len(t, sec.Variants, 1)
}

func TestDetermineVariants_NamesAndSeeds(t *testing.T) {
	sec := DetermineVariantsForSection(Config{
		NumVariants:  3,
		VariantNames: []string{"Apple", "", "cherry"},
		Seeds:        []string{"s1"},
	}, nil)

	require.Len(t, sec.Variants, 3)
	assert.Equal(t, Variant{Index: 1, Name: "apple", Seed: "s1"}, sec.Variants[0])
	assert.Equal(t, Variant{Index: 2, Name: "b", Seed: "2"}, sec.Variants[1])
	assert.Equal(t, Variant{Index: 3, Name: "cherry", Seed: "3"}, sec.Variants[2])

	v, ok := sec.ByName("APPLE")
	require.True(t, ok)
	assert.Equal(t, 1, v.Index)
}

func TestDetermineVariants_IncludeExclude(t *testing.T) {
	sec := DetermineVariantsForSection(Config{
		NumVariants:       5,
		VariantsToInclude: []string{"b", "c", "d"},
		VariantsToExclude: []string{"C"},
	}, nil)

	names := make([]string, len(sec.Variants))
	for i, v := range sec.Variants {
		names[i] = v.Name
	}
	assert.Equal(t, []string{"b", "d"}, names)
	assert.Equal(t, 4, sec.Variants[1].Index)
}

func TestDetermineVariants_FilterExcludesAll(t *testing.T) {
	sec := DetermineVariantsForSection(Config{
		NumVariants:       2,
		VariantsToExclude: []string{"a", "b"},
	}, nil)

	assert.Len(t, sec.Variants, 2)
	assert.NotEmpty(t, sec.Warnings)
}

func TestDetermineVariants_UniqueDistinct(t *testing.T) {
	sec := DetermineVariantsForSection(Config{NumVariants: 50, UniqueVariants: true}, fixedCount(60))

	assert.Equal(t, ModeUnique, sec.Mode)
	require.Len(t, sec.Variants, 50)
	seen := make(map[int]bool)
	for _, v := range sec.Variants {
		assert.GreaterOrEqual(t, v.UniqueIndex, 1)
		assert.LessOrEqual(t, v.UniqueIndex, 60)
		assert.False(t, seen[v.UniqueIndex])
		seen[v.UniqueIndex] = true
	}
}

func TestDetermineVariants_UniqueShrinksToCount(t *testing.T) {
	sec := DetermineVariantsForSection(Config{UniqueVariants: true}, fixedCount(6))

	assert.Equal(t, ModeUnique, sec.Mode)
	assert.Equal(t, 6, sec.NumVariants)
	idx := make([]int, len(sec.Variants))
	for i, v := range sec.Variants {
		idx[i] = v.UniqueIndex
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, idx)
}

func TestDetermineVariants_UniqueIsStable(t *testing.T) {
	a := DetermineVariantsForSection(Config{NumVariants: 10, UniqueVariants: true}, fixedCount(1000))
	b := DetermineVariantsForSection(Config{NumVariants: 10, UniqueVariants: true}, fixedCount(1000))
	assert.Equal(t, a, b)
}

func TestDetermineVariants_UniqueFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		count Counter
		cap   int
	}{
		{"no counter", nil, 0},
		{"declines", func() (int, bool) { return 0, false }, 0},
		{"over cap", fixedCount(MaxUniqueVariants + 1), 0},
		{"over custom cap", fixedCount(20), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := DetermineVariantsForSection(Config{NumVariants: 4, UniqueVariants: true, UniqueCap: tt.cap}, tt.count)
			assert.Equal(t, ModeIndependent, sec.Mode)
			assert.Len(t, sec.Variants, 4)
			assert.Zero(t, sec.Variants[0].UniqueIndex)
			assert.NotEmpty(t, sec.Warnings)
		})
	}
}

func TestSection_ByIndexWraps(t *testing.T) {
	sec := DetermineVariantsForSection(Config{NumVariants: 3}, nil)

	v, ok := sec.ByIndex(4)
	require.True(t, ok)
	assert.Equal(t, "a", v.Name)

	v, ok = sec.ByIndex(0)
	require.True(t, ok)
	assert.Equal(t, "c", v.Name)

	_, ok = Section{}.ByIndex(1)
	assert.False(t, ok)
}

func TestIndexToLetters(t *testing.T) {
	assert.Equal(t, "a", IndexToLetters(1))
	assert.Equal(t, "z", IndexToLetters(26))
	assert.Equal(t, "aa", IndexToLetters(27))
	assert.Equal(t, "az", IndexToLetters(52))
	assert.Equal(t, "ba", IndexToLetters(53))
	assert.Equal(t, "", IndexToLetters(0))
}

func TestSetUpVariantSeedAndRng_DesiredSeedWins(t *testing.T) {
	parent := NewShared("parent")
	setup := SetUpVariantSeedAndRng(&Desired{Seed: "42"}, parent, 0, false)

	assert.Equal(t, "42", setup.Shared.VariantSeed)
	assert.Equal(t, "42", setup.Shared.VariantRng.Seed())
	assert.Equal(t, "42s", setup.Shared.SubpartVariantRng.Seed())
}

func TestSetUpVariantSeedAndRng_SubpartIsolation(t *testing.T) {
	// Drawing a seed from the subpart generator leaves the main stream
	// untouched.
	a := NewShared("doc")
	b := NewShared("doc")

	SetUpVariantSeedAndRng(nil, a, 0, true)
	assert.Equal(t, b.VariantRng.Uint32(), a.VariantRng.Uint32())

	c := NewShared("doc")
	d := NewShared("doc")
	s1 := SetUpVariantSeedAndRng(nil, c, 0, false)
	s2 := SetUpVariantSeedAndRng(nil, d, 0, false)
	assert.Equal(t, s1.Shared.VariantSeed, s2.Shared.VariantSeed)
}

func TestSetUpVariantSeedAndRng_Subvariants(t *testing.T) {
	desired := &Desired{
		Seed:        "7",
		Subvariants: []Desired{{Index: 2}, {Seed: "x"}, {Index: 9}},
	}

	setup := SetUpVariantSeedAndRng(desired, nil, 2, false)
	assert.Equal(t, map[int]Desired{0: {Index: 2}, 1: {Seed: "x"}}, setup.Assigned)

	none := SetUpVariantSeedAndRng(nil, nil, 3, false)
	assert.Equal(t, "0", none.Shared.VariantSeed)
	assert.Nil(t, none.Assigned)
}
