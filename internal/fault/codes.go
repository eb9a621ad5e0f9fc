package fault

import "fmt"

// Code is a reconstruction failure code.
type Code int

const (
	codeInvalid Code = iota

	FMT000ListingSyntax
	FMT010TargetOutOfBounds
	FMT011InstructionOutOfBounds
	FMT012FallthroughOutOfBounds
	FMT020DuplicateOffset
	FMT021OverlappingInstruction
	FMT030NonContiguousBind
	FMT031TargetMidInstruction
	FMT032DanglingTarget
	FMT033MissingInstruction
	FMT034TargetCount
	FMT040TryPartialOverlap
	FMT041TryBoundary
	FMT042DanglingHandler
	FMT050IncompleteCoverage

	INV100AlreadyParented
	INV101DeadNode
	INV110SelfLink
	INV120GroupNotContiguous
	INV121GroupParentMismatch
	INV130SplitOutOfRange
	INV140WalkBudget

	UNS200InstructionKind
	UNS201PayloadKind
	UNS210CircuitBudget
)

// String returns the canonical code and short name.
// Example: "FMT010: TargetOutOfBounds"
func (c Code) String() string {
	switch c {
	case FMT000ListingSyntax:
		return "FMT000: ListingSyntax"
	case FMT010TargetOutOfBounds:
		return "FMT010: TargetOutOfBounds"
	case FMT011InstructionOutOfBounds:
		return "FMT011: InstructionOutOfBounds"
	case FMT012FallthroughOutOfBounds:
		return "FMT012: FallthroughOutOfBounds"
	case FMT020DuplicateOffset:
		return "FMT020: DuplicateOffset"
	case FMT021OverlappingInstruction:
		return "FMT021: OverlappingInstruction"
	case FMT030NonContiguousBind:
		return "FMT030: NonContiguousBind"
	case FMT031TargetMidInstruction:
		return "FMT031: TargetMidInstruction"
	case FMT032DanglingTarget:
		return "FMT032: DanglingTarget"
	case FMT033MissingInstruction:
		return "FMT033: MissingInstruction"
	case FMT034TargetCount:
		return "FMT034: TargetCount"
	case FMT040TryPartialOverlap:
		return "FMT040: TryPartialOverlap"
	case FMT041TryBoundary:
		return "FMT041: TryBoundary"
	case FMT042DanglingHandler:
		return "FMT042: DanglingHandler"
	case FMT050IncompleteCoverage:
		return "FMT050: IncompleteCoverage"
	case INV100AlreadyParented:
		return "INV100: AlreadyParented"
	case INV101DeadNode:
		return "INV101: DeadNode"
	case INV110SelfLink:
		return "INV110: SelfLink"
	case INV120GroupNotContiguous:
		return "INV120: GroupNotContiguous"
	case INV121GroupParentMismatch:
		return "INV121: GroupParentMismatch"
	case INV130SplitOutOfRange:
		return "INV130: SplitOutOfRange"
	case INV140WalkBudget:
		return "INV140: WalkBudget"
	case UNS200InstructionKind:
		return "UNS200: InstructionKind"
	case UNS201PayloadKind:
		return "UNS201: PayloadKind"
	case UNS210CircuitBudget:
		return "UNS210: CircuitBudget"
	default:
		return fmt.Sprintf("code-unknown(%d)", int(c))
	}
}

// Description returns the human-readable explanation of the code.
func (c Code) Description() string {
	switch c {
	case FMT000ListingSyntax:
		return "Instruction listing cannot be parsed."
	case FMT010TargetOutOfBounds:
		return "Branch target lies beyond the method's byte-code length."
	case FMT011InstructionOutOfBounds:
		return "Instruction extends beyond the method's byte-code length."
	case FMT012FallthroughOutOfBounds:
		return "Instruction continues in sequence past the end of the method."
	case FMT020DuplicateOffset:
		return "Two nodes are registered at the same offset."
	case FMT021OverlappingInstruction:
		return "Instruction overlaps another instruction or the end of its region."
	case FMT030NonContiguousBind:
		return "Instruction does not start right after the last instruction of its block."
	case FMT031TargetMidInstruction:
		return "Branch target lands inside an instruction."
	case FMT032DanglingTarget:
		return "Branch target never received an instruction."
	case FMT033MissingInstruction:
		return "Reachable offset has no decoded instruction."
	case FMT034TargetCount:
		return "Instruction carries a target count its kind does not allow."
	case FMT040TryPartialOverlap:
		return "Try regions overlap without one containing the other."
	case FMT041TryBoundary:
		return "Try region boundary cuts through an instruction."
	case FMT042DanglingHandler:
		return "Handler offset does not resolve to a block."
	case FMT050IncompleteCoverage:
		return "Decoded instructions leave part of the method uncovered."
	case INV100AlreadyParented:
		return "Node already has a parent."
	case INV101DeadNode:
		return "Node was replaced by a split and is no longer part of the tree."
	case INV110SelfLink:
		return "Graph node linked to itself."
	case INV120GroupNotContiguous:
		return "Grouped run is not a contiguous slice of the parent's children."
	case INV121GroupParentMismatch:
		return "Grouped run is not uniformly parented."
	case INV130SplitOutOfRange:
		return "Split boundary lies outside the node's range."
	case INV140WalkBudget:
		return "Tree walk exceeded its step budget."
	case UNS200InstructionKind:
		return "Instruction kind is not modeled."
	case UNS201PayloadKind:
		return "Instruction payload kind is not modeled."
	case UNS210CircuitBudget:
		return "Circuit enumeration exceeded its budget."
	default:
		return fmt.Sprintf("code-unknown(%d)", int(c))
	}
}

// Kind returns the failure class of the code.
func (c Code) Kind() Kind {
	switch {
	case c >= FMT000ListingSyntax && c <= FMT050IncompleteCoverage:
		return KindFormatInconsistency
	case c >= INV100AlreadyParented && c <= INV140WalkBudget:
		return KindInvariantViolation
	case c >= UNS200InstructionKind && c <= UNS210CircuitBudget:
		return KindUnsupportedFeature
	default:
		return kindInvalid
	}
}
