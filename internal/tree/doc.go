// Package tree implements the ordered address-range tree of a method body.
//
// Nodes live in an arena owned by Tree and are referenced through Node
// handles. A node either carries its own byte range [offset, offset+size)
// (root, unresolved, instruction and region nodes) or is a grouping node whose
// range is the union of its children (group, try and guarded nodes). Children
// are kept in increasing offset order and are linked to their neighbours with
// left/right sibling references.
//
// Unresolved and instruction nodes are leaves and are registered in the tree's
// offset index, so the leaf owning any byte of the method can be found without
// walking. The index holds disjoint spans only: registering a leaf over an
// already owned byte fails.
//
// Two edits restructure the tree:
//
//   - Split replaces a leaf with up to three leaves: the part before the split
//     point, a part built by a caller supplied factory, and the remainder.
//   - Group moves a contiguous run of siblings under a fresh grouping node
//     which takes the run's place among its parent's children.
//
// Walk is the traversal engine. It supports four modes:
//
//   - PostThenSelf visits children before their parent.
//   - SelfThenChildren visits a parent before its children.
//   - EnterExit reports Enter and Exit around the children of internal nodes
//     and a single Leaf event for leaves.
//   - FullEnterExit adds a Transit event on the parent between every two
//     consecutive children.
//
// The handler steers the walk with its Action: Continue, SkipChildren,
// SkipSiblings or Stop. Walks can go right to left with Reverse. Every handler
// call counts against the tree's step budget.
package tree
