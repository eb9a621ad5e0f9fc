// Package flow builds the control-flow graph of a method body out of its
// decoded instructions.
//
// Instructions are walked once in offset order. A block stays open while
// its instructions continue in sequence; branches close it and create (or
// split) the blocks of their targets on demand. A target landing inside an
// already filled block splits it: the tail becomes a new block which inherits
// the outgoing edges and is entered from the head.
//
// Once every instruction is bound, a synthetic root block is linked to every
// block the walk could not reach, so the root is the single entry, and the
// blocks without successors are pairwise merged into synthetic merge blocks
// until a single exit remains.
//
// Edges are symmetric: a block is in the successors of another exactly when
// the latter is in its predecessors. Both lists are ordered by insertion and
// free of duplicates. Whether a block may be its own successor is a policy,
// see WithSelfLoops.
package flow
