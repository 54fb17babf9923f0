package catalog

import (
	"fmt"
	"math"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// maxSequenceLength bounds the values a sequence may hold.
const maxSequenceLength = 100_000

// selectFromSequenceType is a composite that picks numToSelect values from
// from, from+step, ..., to and expands into one number per value. The
// pick is its variant selection, so it is reproducible per variant and
// enumerable in unique mode.
func selectFromSequenceType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "selectFromSequence",
		Attributes: map[string]engine.AttributeSpec{
			"from":            {},
			"to":              {},
			"step":            {},
			"numToSelect":     {},
			"withReplacement": {},
		},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"selectedValues": {Public: true, HasEssential: true},
		},
		PrimaryVariable: "selectedValues",
		Variants: &engine.VariantCapability{
			StateVariable: "selectedValues",
			UniqueCount: func(r engine.Reader) (int, bool) {
				seq, err := readSequence(r)
				if err != nil {
					return 0, false
				}
				return variant.CountSelections(len(seq.values), seq.numToSelect, seq.withReplacement, variant.MaxUniqueVariants)
			},
			Select: selectFromSequence,
		},
		Expand: func(x engine.ExpandContext) ([]engine.NodeSpec, error) {
			selected, ok := x.Value("selectedValues").(ir.IRArray)
			if !ok {
				return nil, fmt.Errorf("nothing was selected")
			}
			out := make([]engine.NodeSpec, 0, len(selected))
			for _, v := range selected {
				f, ok := ir.AsFloat(v)
				if !ok {
					return nil, fmt.Errorf("selected value %v is not a number", v)
				}
				out = append(out, engine.NodeSpec{Type: "number", Attributes: map[string]any{"value": f}})
			}
			return out, nil
		},
	}
}

type sequence struct {
	values          []float64
	numToSelect     int
	withReplacement bool
}

func readSequence(r engine.Reader) (sequence, error) {
	num := func(name string, def float64) (float64, error) {
		v, ok := r.Attribute(name)
		if !ok {
			return def, nil
		}
		f, ok := ir.AsFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%s must be a finite number", name)
		}
		return f, nil
	}
	from, err := num("from", 1)
	if err != nil {
		return sequence{}, err
	}
	to, err := num("to", 10)
	if err != nil {
		return sequence{}, err
	}
	step, err := num("step", 1)
	if err != nil {
		return sequence{}, err
	}
	k, err := num("numToSelect", 1)
	if err != nil {
		return sequence{}, err
	}
	if step == 0 || (to-from)/step < 0 {
		return sequence{}, fmt.Errorf("sequence from %v to %v by %v is empty", from, to, step)
	}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	if n > maxSequenceLength {
		return sequence{}, fmt.Errorf("sequence has %d values, more than %d", n, maxSequenceLength)
	}
	seq := sequence{values: make([]float64, n), numToSelect: int(k)}
	for i := range seq.values {
		seq.values[i] = from + float64(i)*step
	}
	if v, ok := r.Attribute("withReplacement"); ok {
		seq.withReplacement = v == ir.IRBool(true)
	}
	if seq.numToSelect < 0 || (!seq.withReplacement && seq.numToSelect > n) {
		return sequence{}, fmt.Errorf("cannot select %d of %d values", seq.numToSelect, n)
	}
	return seq, nil
}

func selectFromSequence(r engine.Reader, desired variant.Desired, shared *variant.Shared) (ir.IRValue, error) {
	seq, err := readSequence(r)
	if err != nil {
		return nil, err
	}
	n, k := len(seq.values), seq.numToSelect

	var picks []int
	if count, ok := variant.CountSelections(n, k, seq.withReplacement, variant.MaxUniqueVariants); ok && desired.Index > 0 {
		picks = variant.SelectionForIndex((desired.Index-1)%count+1, n, k, seq.withReplacement)
	} else if seq.withReplacement {
		picks = make([]int, k)
		for i := range picks {
			picks[i] = shared.VariantRng.IntN(n)
		}
	} else {
		for _, p := range shared.VariantRng.ShufflePrefix(n, k) {
			picks = append(picks, p-1)
		}
	}

	out := make(ir.IRArray, len(picks))
	for i, p := range picks {
		out[i] = ir.IRNumber(seq.values[p])
	}
	return out, nil
}
