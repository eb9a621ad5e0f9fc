// Package fault defines the canonical failure codes raised while a method body
// is reconstructed into an address-range tree and a flow graph.
//
// Every code belongs to exactly one kind:
//
//   - FormatInconsistency: the input (decoded instructions, exception table)
//     contradicts itself. Fatal to the method, not to the batch.
//   - InvariantViolation: a structural edit was requested that can only come
//     from a bug in the caller. Always fatal.
//   - UnsupportedFeature: the input is recognized but not modeled, or the
//     method exceeds a configured budget. Fatal to the method only.
//
// Code numbering scheme:
//
//	FMT000–FMT099  Format inconsistencies
//	INV100–INV199  Invariant violations
//	UNS200–UNS299  Unsupported features and budgets
package fault
