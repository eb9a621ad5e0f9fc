// Package ast builds the address-range tree of a method and reshapes it to
// express exception handling.
//
// Build starts from a root holding a single unresolved leaf over the whole
// method and decodes reachable instructions from the method entry, every
// handler entry and every embedded data table, splitting the unresolved
// leaves as it goes. Bytes left unresolved once nothing is left to decode
// make the method fail.
//
// Reconcile then inserts the try regions into a containment hierarchy and
// walks it innermost first. Each region groups the nodes it covers under a
// guarded node, itself the single child of a try node carrying the region's
// handlers. Every handler entry is made a block boundary of the flow graph.
//
//	root
//	  try      catch Ljava/io/IOException; 0x0010
//	    guarded
//	      insn
//	      insn
//	  insn
package ast
