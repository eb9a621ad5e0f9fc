package bytecode

import (
	"fmt"
	"strings"

	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Kind is the control-flow shape of an instruction.
type Kind int

const (
	KindInvalid Kind = iota

	// KindPlain continues in sequence and has no targets.
	KindPlain

	// KindReturn and KindThrow end the method's flow.
	KindReturn
	KindThrow

	// KindGoto transfers control to exactly one target.
	KindGoto

	// KindIf either branches to its target or continues in sequence.
	KindIf

	// KindSwitch branches to one of its case targets or continues in sequence.
	KindSwitch

	// KindArrayData references an array-data table and continues in sequence.
	KindArrayData

	// KindPayload is a data table embedded in the code (switch or array data).
	KindPayload
)

var kindValueMap = map[Kind]string{
	KindPlain:     "plain",
	KindReturn:    "return",
	KindThrow:     "throw",
	KindGoto:      "goto",
	KindIf:        "if",
	KindSwitch:    "switch",
	KindArrayData: "array-data",
	KindPayload:   "payload",
}

func (k Kind) String() string {
	v, ok := kindValueMap[k]
	if !ok {
		return fmt.Sprintf("invalid(%d)", k)
	}

	return v
}

// SwitchTable is the decoded payload of a packed or sparse switch.
type SwitchTable struct {
	Keys    []int32
	Targets []uint32
}

// ArrayData is the decoded payload of a fill-array-data table.
type ArrayData struct {
	ElementWidth uint16
	Elements     uint32
}

// Instruction is a decoded instruction.
type Instruction struct {
	Offset   uint32
	Size     uint32
	Kind     Kind
	Mnemonic string

	// Targets are absolute offsets of the additional control-flow targets.
	Targets []uint32

	// Payload is opaque decoder data attached to the instruction.
	Payload any
}

// End returns the offset right past the instruction.
func (i *Instruction) End() uint32 {
	return i.Offset + i.Size
}

// ContinuesInSequence reports whether control may reach the next instruction.
func (i *Instruction) ContinuesInSequence() bool {
	switch i.Kind {
	case KindPlain, KindIf, KindSwitch, KindArrayData:
		return true
	default:
		return false
	}
}

// BranchTargets returns the additional target offsets after checking them
// against what the instruction kind allows.
func (i *Instruction) BranchTargets() ([]uint32, error) {
	switch i.Kind {
	case KindPlain, KindReturn, KindThrow, KindPayload:
		if len(i.Targets) != 0 {
			return nil, i.targetCount("no")
		}
		return nil, nil

	case KindGoto, KindIf:
		if len(i.Targets) != 1 {
			return nil, i.targetCount("exactly one")
		}
		return i.Targets, nil

	case KindArrayData:
		switch i.Payload.(type) {
		case nil, *ArrayData:
		default:
			return nil, fault.At(fault.UNS201PayloadKind, i.Offset, "%s carries %T", i.Mnemonic, i.Payload)
		}
		if len(i.Targets) != 1 {
			return nil, i.targetCount("exactly one")
		}
		return i.Targets, nil

	case KindSwitch:
		switch p := i.Payload.(type) {
		case nil:
		case *SwitchTable:
			if len(p.Targets) != len(i.Targets) {
				return nil, fault.At(
					fault.FMT034TargetCount,
					i.Offset,
					"%s lists %d targets, its table %d",
					i.Mnemonic,
					len(i.Targets),
					len(p.Targets),
				)
			}
		default:
			return nil, fault.At(fault.UNS201PayloadKind, i.Offset, "%s carries %T", i.Mnemonic, i.Payload)
		}
		if len(i.Targets) == 0 {
			return nil, i.targetCount("at least one")
		}
		return i.Targets, nil

	default:
		return nil, fault.At(fault.UNS200InstructionKind, i.Offset, "%s has kind %s", i.Mnemonic, i.Kind)
	}
}

func (i *Instruction) targetCount(allowed string) error {
	return fault.At(
		fault.FMT034TargetCount,
		i.Offset,
		"%s (%s) allows %s target, got %d",
		i.Mnemonic,
		i.Kind,
		allowed,
		len(i.Targets),
	)
}

func (i *Instruction) String() string {
	if len(i.Targets) == 0 {
		return i.Mnemonic
	}

	var buf strings.Builder
	buf.WriteString(i.Mnemonic)
	buf.WriteString(" ->")
	for _, t := range i.Targets {
		fmt.Fprintf(&buf, " 0x%04x", t)
	}

	return buf.String()
}

// KindOfMnemonic infers the instruction kind from its Dalvik mnemonic.
func KindOfMnemonic(mnemonic string) Kind {
	switch {
	case strings.HasSuffix(mnemonic, "-payload"):
		return KindPayload
	case strings.HasPrefix(mnemonic, "goto"):
		return KindGoto
	case strings.HasPrefix(mnemonic, "if-"):
		return KindIf
	case mnemonic == "packed-switch" || mnemonic == "sparse-switch":
		return KindSwitch
	case mnemonic == "fill-array-data":
		return KindArrayData
	case strings.HasPrefix(mnemonic, "return"):
		return KindReturn
	case mnemonic == "throw":
		return KindThrow
	default:
		return KindPlain
	}
}
