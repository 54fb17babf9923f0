package variant

import "strconv"

// Desired is a requested variant for one component: a seed, a 1-based
// unique configuration index, or both, plus requests for its randomized
// descendants in document order.
type Desired struct {
	Seed        string    `json:"seed,omitempty" yaml:"seed,omitempty"`
	Index       int       `json:"index,omitempty" yaml:"index,omitempty"`
	Subvariants []Desired `json:"subvariants,omitempty" yaml:"subvariants,omitempty"`
}

// Shared carries the generators a component and its descendants draw from.
type Shared struct {
	VariantSeed string

	// VariantRng drives random choices.
	VariantRng *RNG

	// SubpartVariantRng seeds descendants that need their own seed but make
	// no random choice of their own, so inserting such a component does not
	// shift the draws of VariantRng.
	SubpartVariantRng *RNG
}

// NewShared builds the generators for seed.
func NewShared(seed string) *Shared {
	return &Shared{
		VariantSeed:       seed,
		VariantRng:        NewRNG(seed),
		SubpartVariantRng: NewRNG(seed + "s"),
	}
}

// Setup is the result of SetUpVariantSeedAndRng.
type Setup struct {
	Shared *Shared

	// Assigned maps positions in the component's list of randomized
	// descendants to the subvariant requested for them.
	Assigned map[int]Desired
}

// SetUpVariantSeedAndRng derives the seed and generators for a component.
// A seed in desired wins. Otherwise the seed is drawn from the parent's
// SubpartVariantRng when useSubpartRng is set, else from its VariantRng.
// A nil parent with no desired seed uses seed "0". Subvariants in desired
// are assigned to descendant positions in order, up to numDescendants.
func SetUpVariantSeedAndRng(desired *Desired, parent *Shared, numDescendants int, useSubpartRng bool) Setup {
	var seed string
	switch {
	case desired != nil && desired.Seed != "":
		seed = desired.Seed
	case parent == nil:
		seed = "0"
	case useSubpartRng:
		seed = strconv.FormatUint(uint64(parent.SubpartVariantRng.Uint32()), 10)
	default:
		seed = strconv.FormatUint(uint64(parent.VariantRng.Uint32()), 10)
	}

	setup := Setup{Shared: NewShared(seed)}
	if desired != nil && len(desired.Subvariants) > 0 {
		setup.Assigned = make(map[int]Desired)
		for i, sub := range desired.Subvariants {
			if i >= numDescendants {
				break
			}
			setup.Assigned[i] = sub
		}
	}
	return setup
}
