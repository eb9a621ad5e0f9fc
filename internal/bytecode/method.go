package bytecode

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Handler is a typed catch handler.
type Handler struct {
	// Type is the caught type descriptor, e.g. "Ljava/io/IOException;".
	Type   string
	Offset uint32
}

// TryRegion is a guarded byte range with its handlers.
type TryRegion struct {
	Start    uint32
	Size     uint32
	Handlers []Handler

	CatchAll    uint32
	HasCatchAll bool
}

// End returns the offset right past the guarded range.
func (r *TryRegion) End() uint32 {
	return r.Start + r.Size
}

// HandlerOffsets lists every handler entry point, typed handlers first.
func (r *TryRegion) HandlerOffsets() []uint32 {
	res := make([]uint32, 0, len(r.Handlers)+1)
	for _, h := range r.Handlers {
		res = append(res, h.Offset)
	}
	if r.HasCatchAll {
		res = append(res, r.CatchAll)
	}

	return res
}

func (r *TryRegion) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[0x%04x,0x%04x)", r.Start, r.End())
	for _, h := range r.Handlers {
		fmt.Fprintf(&buf, " catch %s 0x%04x", h.Type, h.Offset)
	}
	if r.HasCatchAll {
		fmt.Fprintf(&buf, " catchall 0x%04x", r.CatchAll)
	}

	return buf.String()
}

// Method is one method body as handed over by the container reader.
type Method struct {
	Name     string
	CodeSize uint32

	// Instructions are sorted by offset.
	Instructions []*Instruction
	Tries        []TryRegion
}

// Sort orders instructions by offset.
func (m *Method) Sort() {
	sort.SliceStable(m.Instructions, func(i, j int) bool {
		return m.Instructions[i].Offset < m.Instructions[j].Offset
	})
}

// Fingerprint identifies the method body. Two methods with the same code,
// exception table and name share a fingerprint. Every list and string is
// length prefixed, so distinct methods never hash the same byte stream.
func (m *Method) Fingerprint() string {
	h := sha3.New256()
	var buf [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	putString := func(s string) {
		put(uint32(len(s)))
		h.Write([]byte(s))
	}

	putString(m.Name)
	put(m.CodeSize)
	put(uint32(len(m.Instructions)))
	for _, insn := range m.Instructions {
		put(insn.Offset)
		put(insn.Size)
		put(uint32(insn.Kind))
		putString(insn.Mnemonic)
		put(uint32(len(insn.Targets)))
		for _, t := range insn.Targets {
			put(t)
		}
	}
	put(uint32(len(m.Tries)))
	for _, r := range m.Tries {
		put(r.Start)
		put(r.Size)
		put(uint32(len(r.Handlers)))
		for _, hd := range r.Handlers {
			putString(hd.Type)
			put(hd.Offset)
		}
		if r.HasCatchAll {
			h.Write([]byte{1})
			put(r.CatchAll)
		} else {
			h.Write([]byte{0})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
