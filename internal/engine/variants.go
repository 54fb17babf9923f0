package engine

import (
	"fmt"

	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// VariantRequest selects a variant by 1-based index or by name. The zero
// value selects the first variant.
type VariantRequest struct {
	Index int    `json:"index,omitempty" yaml:"index,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// VariantInfo describes the variant the document was initialized with.
type VariantInfo struct {
	Index       int          `json:"index"`
	Name        string       `json:"name"`
	Seed        string       `json:"seed"`
	Mode        variant.Mode `json:"mode"`
	NumVariants int          `json:"num_variants"`
	UniqueIndex int          `json:"unique_index,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// Variant returns the selected variant.
func (e *Engine) Variant() VariantInfo { return e.variant }

// Variants resolves the document's variant list without initializing.
// The tree is built into a scratch engine.
func Variants(reg *Registry, doc NodeSpec, opts ...Option) (variant.Section, error) {
	opts = append(opts, WithDocumentID("variants"), WithLogger(discardLogger()))
	scratch := New(reg, doc, opts...)
	root := scratch.build(doc, nil)
	if root == nil {
		return variant.Section{}, fmt.Errorf("document root has unknown type %q", doc.Type)
	}
	scratch.root = root
	cfg, _, counter := scratch.variantSection()
	return variant.DetermineVariantsForSection(cfg, counter), nil
}

// variantComponents lists components taking part in variant selection, in
// document order. Unexpanded composites count; their replacements do not
// exist yet.
func (e *Engine) variantComponents() []*Component {
	var out []*Component
	var walk func(c *Component)
	walk = func(c *Component) {
		if v := c.typ.Variants; v != nil && v.Select != nil && c != e.root {
			out = append(out, c)
		}
		for _, child := range c.children {
			walk(child)
		}
	}
	walk(e.root)
	return out
}

func (e *Engine) variantSection() (variant.Config, []*Component, variant.Counter) {
	var cfg variant.Config
	root := Reader{e: e, c: e.root}
	if v := e.root.typ.Variants; v != nil && v.Section != nil {
		cfg = v.Section(root)
	}
	if cfg.NumVariants == 0 {
		cfg.NumVariants = e.variantDefaults.NumVariants
	}
	if cfg.UniqueCap == 0 {
		cfg.UniqueCap = e.variantDefaults.UniqueCap
	}
	capable := e.variantComponents()
	counter := func() (int, bool) {
		counts := make([]int, len(capable))
		for i, c := range capable {
			if c.typ.Variants.UniqueCount == nil {
				return 0, false
			}
			n, ok := c.typ.Variants.UniqueCount(Reader{e: e, c: c})
			if !ok {
				return 0, false
			}
			counts[i] = n
		}
		limit := cfg.UniqueCap
		if limit <= 0 {
			limit = variant.MaxUniqueVariants
		}
		return variant.CombineCounts(counts, limit)
	}
	return cfg, capable, counter
}

// setUpVariants resolves the section, picks the requested variant, and
// hands each variant-capable component its seed and, in unique mode, its
// configuration index.
func (e *Engine) setUpVariants() {
	cfg, capable, counter := e.variantSection()
	section := variant.DetermineVariantsForSection(cfg, counter)

	chosen, ok := section.ByIndex(max(e.variantRequest.Index, 1))
	if e.variantRequest.Name != "" {
		if byName, found := section.ByName(e.variantRequest.Name); found {
			chosen, ok = byName, true
		} else {
			section.Warnings = append(section.Warnings, fmt.Sprintf("no variant named %q; using %q", e.variantRequest.Name, chosen.Name))
		}
	}
	if !ok {
		chosen = variant.Variant{Index: 1, Name: "a", Seed: "1"}
	}

	desired := variant.Desired{Seed: chosen.Seed}
	if section.Mode == variant.ModeUnique && chosen.UniqueIndex > 0 {
		counts := make([]int, len(capable))
		for i, c := range capable {
			counts[i], _ = c.typ.Variants.UniqueCount(Reader{e: e, c: c})
		}
		for _, idx := range variant.SplitIndex(chosen.UniqueIndex, counts) {
			desired.Subvariants = append(desired.Subvariants, variant.Desired{Index: idx})
		}
	}

	setup := variant.SetUpVariantSeedAndRng(&desired, nil, len(capable), false)
	e.root.shared = setup.Shared
	e.root.desiredVariant = desired

	for i, c := range capable {
		c.desiredVariant = setup.Assigned[i]
		e.selectVariant(c, setup.Shared, false)
	}

	e.variant = VariantInfo{
		Index:       chosen.Index,
		Name:        chosen.Name,
		Seed:        setup.Shared.VariantSeed,
		Mode:        section.Mode,
		NumVariants: section.NumVariants,
		UniqueIndex: chosen.UniqueIndex,
		Warnings:    section.Warnings,
	}
	for _, w := range section.Warnings {
		e.report(Diagnostic{Level: LevelWarning, Message: w, Component: e.root.name, Range: e.root.rng})
	}
}

// selectVariant seeds c from parent and stores its selection as the
// essential value of its variant variable.
func (e *Engine) selectVariant(c *Component, parent *variant.Shared, useSubpart bool) {
	setup := variant.SetUpVariantSeedAndRng(&c.desiredVariant, parent, 0, useSubpart)
	c.shared = setup.Shared

	vc := c.typ.Variants
	if vc == nil || vc.Select == nil {
		return
	}
	var sel ir.IRValue
	err := safeCall(func() error {
		var err error
		sel, err = vc.Select(Reader{e: e, c: c}, c.desiredVariant, c.shared)
		return err
	})
	if err != nil {
		e.failComponent(c, fmt.Errorf("variant selection: %w", err))
		return
	}
	sv := c.vars[vc.StateVariable]
	sv.essential = sel
	sv.hasEssential = true
	sv.assigned = true
	e.invalidate(sv, invalidateValue, "")
}

// assignReplacementVariants seeds a composite's replacement. Components
// making random choices draw from the composite's variant generator;
// the rest draw from its subpart generator so they do not shift those
// draws.
func (e *Engine) assignReplacementVariants(composite, r *Component) {
	parent := nearestShared(composite)
	if parent == nil {
		return
	}
	if v := r.typ.Variants; v != nil && v.Select != nil {
		e.selectVariant(r, parent, false)
		return
	}
	if r.typ.IsComposite() {
		e.selectVariant(r, parent, true)
	}
}

func nearestShared(c *Component) *variant.Shared {
	for n := c; n != nil; {
		if n.shared != nil {
			return n.shared
		}
		if n.replacing != nil {
			n = n.replacing
		} else {
			n = n.parent
		}
	}
	return nil
}
