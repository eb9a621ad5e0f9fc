package flow

import (
	"fmt"
	"io"
	"strings"

	"github.com/emicklei/dot"
	"github.com/pkg/errors"
)

// Dump writes the graph as text: the root, code blocks in offset order with
// their instructions, then merge blocks.
//
//	root -> 0x0000
//	0x0000 [0x0000,0x0004) <- root -> 0x0004 0x0008
//	  0x0000 const/4
//	  0x0002 if-eqz -> 0x0008
func (g *Graph) Dump(w io.Writer) error {
	var buf strings.Builder
	line := func(b *Block) {
		buf.WriteString(b.String())
		if b.kind == KindCode {
			fmt.Fprintf(&buf, " [0x%04x,0x%04x)", b.start, b.End())
		}
		if len(b.preds) > 0 {
			buf.WriteString(" <-")
			for _, p := range b.preds {
				buf.WriteByte(' ')
				buf.WriteString(p.String())
			}
		}
		if len(b.succs) > 0 {
			buf.WriteString(" ->")
			for _, s := range b.succs {
				buf.WriteByte(' ')
				buf.WriteString(s.String())
			}
		}
		buf.WriteByte('\n')

		for _, insn := range b.insns {
			fmt.Fprintf(&buf, "  0x%04x %s\n", insn.Offset, insn)
		}
	}

	line(g.root)
	for _, b := range g.CodeBlocks() {
		line(b)
	}
	for _, b := range g.blocks {
		if b.kind == KindMerge {
			line(b)
		}
	}

	if _, err := io.WriteString(w, buf.String()); err != nil {
		return errors.Wrap(err, "write flow dump")
	}

	return nil
}

// Dot renders the graph for Graphviz.
func (g *Graph) Dot(title string) *dot.Graph {
	dg := dot.NewGraph(dot.Directed)
	if title != "" {
		dg.Label(title)
	}

	nodes := make(map[*Block]dot.Node, len(g.blocks))
	for _, b := range g.blocks {
		n := dg.Node(fmt.Sprintf("b%d", b.id))
		switch b.kind {
		case KindCode:
			// Left justified lines end with \l.
			var label strings.Builder
			fmt.Fprintf(&label, `"%s [0x%04x,0x%04x)\l`, b, b.start, b.End())
			for _, insn := range b.insns {
				text := strings.ReplaceAll(insn.String(), `"`, `\"`)
				fmt.Fprintf(&label, `0x%04x %s\l`, insn.Offset, text)
			}
			label.WriteString(`"`)
			n.Attr("label", dot.Literal(label.String()))
			n.Box()
		default:
			n.Label(b.String())
			n.Attr("shape", "ellipse")
		}
		nodes[b] = n
	}

	for _, b := range g.blocks {
		for _, s := range b.succs {
			e := dg.Edge(nodes[b], nodes[s])
			if s.kind == KindMerge || b.kind == KindRoot {
				e.Dashed()
			}
		}
	}

	return dg
}
