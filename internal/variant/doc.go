// Package variant implements deterministic, seed-driven selection of
// document variants.
//
// A section declares how many variants it has and, optionally, their names
// and seeds. DetermineVariantsForSection resolves that declaration into a
// concrete list of variants, either in unique mode (every variant maps to a
// distinct configuration index of the section's randomized descendants) or
// in independent mode (every variant carries its own seed and no two are
// guaranteed to differ). SetUpVariantSeedAndRng then derives the random
// generators a component draws from once its variant is known.
package variant
