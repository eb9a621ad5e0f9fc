package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Dump writes the subtree of the root as indented text, one node per line.
func (t *Tree) Dump(w io.Writer) error {
	return t.DumpNode(w, t.Root())
}

// DumpNode writes the subtree of n as indented text. Payloads implementing
// fmt.Stringer are appended to their node line.
func (t *Tree) DumpNode(w io.Writer, n Node) error {
	var depth int
	var werr error
	line := func(n Node) {
		if werr != nil {
			return
		}

		lo, hi := t.bounds(n.id)
		var buf strings.Builder
		buf.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&buf, "%s [0x%04x,0x%04x)", n.Kind(), lo, hi)
		if s, ok := n.Payload().(fmt.Stringer); ok {
			if text := s.String(); text != "" {
				buf.WriteByte(' ')
				buf.WriteString(text)
			}
		}
		buf.WriteByte('\n')

		_, werr = io.WriteString(w, buf.String())
	}

	err := t.Walk(n, EnterExit, Forward, func(n Node, ev Event) Action {
		switch ev {
		case Leaf:
			line(n)
		case Enter:
			line(n)
			depth++
		case Exit:
			depth--
		}

		if werr != nil {
			return Stop
		}
		return Continue
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return errors.Wrap(werr, "write tree dump")
	}

	return nil
}
