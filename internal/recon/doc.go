// Package recon runs the whole reconstruction of a method: flow graph,
// address-range tree, try/catch reconciliation and circuit enumeration.
//
// Every method gets private structures, so methods are reconstructed in
// parallel by Batch. A Result is read-only once returned and may be handed
// out again from the cache to later callers asking for a method with the
// same fingerprint.
package recon
