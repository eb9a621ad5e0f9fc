package tree

import (
	"fmt"

	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Mode selects the event sequence of a walk.
type Mode int

const (
	modeInvalid Mode = iota
	PostThenSelf
	SelfThenChildren
	EnterExit
	FullEnterExit
)

func (m Mode) String() string {
	switch m {
	case PostThenSelf:
		return "post-then-self"
	case SelfThenChildren:
		return "self-then-children"
	case EnterExit:
		return "enter-exit"
	case FullEnterExit:
		return "full-enter-exit"
	default:
		return fmt.Sprintf("invalid(%d)", int(m))
	}
}

// Direction is the order siblings are walked in.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Event tells the handler why it is called.
type Event int

const (
	// Visit is the only event of the PostThenSelf and SelfThenChildren modes.
	Visit Event = iota

	// Leaf is reported once for a node without children in the enter/exit modes.
	Leaf

	// Enter is reported for a node with children before its children.
	Enter

	// Exit is reported for an entered node after its children.
	Exit

	// Transit is reported for a node between two consecutive children.
	Transit
)

func (e Event) String() string {
	switch e {
	case Visit:
		return "visit"
	case Leaf:
		return "leaf"
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	case Transit:
		return "transit"
	default:
		return fmt.Sprintf("invalid(%d)", int(e))
	}
}

// Action is the handler verdict.
type Action int

const (
	// Continue walks on normally.
	Continue Action = iota

	// SkipChildren prunes the remaining children of the current node.
	SkipChildren

	// SkipSiblings prunes the current node's remaining children and its
	// remaining siblings.
	SkipSiblings

	// Stop ends the walk.
	Stop
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case SkipChildren:
		return "skip-children"
	case SkipSiblings:
		return "skip-siblings"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("invalid(%d)", int(a))
	}
}

// Handler is called for every walk event.
type Handler func(n Node, ev Event) Action

// Walk walks the subtree of start.
func (t *Tree) Walk(start Node, mode Mode, dir Direction, handler Handler) error {
	if err := t.checkAlive(start); err != nil {
		return err
	}

	w := &walker{
		t:       t,
		dir:     dir,
		handler: handler,
	}
	switch mode {
	case PostThenSelf:
		w.postThenSelf(start.id)
	case SelfThenChildren:
		w.selfThenChildren(start.id)
	case EnterExit:
		w.enterExit(start.id, false)
	case FullEnterExit:
		w.enterExit(start.id, true)
	default:
		panic(fmt.Sprintf("tree: unsupported walk mode %s", mode))
	}

	return w.err
}

type signal int

const (
	sigNext signal = iota
	sigSkipSiblings
	sigStop
)

type walker struct {
	t       *Tree
	dir     Direction
	handler Handler
	steps   int
	err     error
}

func (w *walker) call(id ID, ev Event) Action {
	w.steps++
	if w.t.maxSteps > 0 && w.steps > w.t.maxSteps {
		w.err = fault.New(fault.INV140WalkBudget, "more than %d steps at %s", w.t.maxSteps, Node{t: w.t, id: id})
		return Stop
	}

	return w.handler(Node{t: w.t, id: id}, ev)
}

func (w *walker) first(id ID) ID {
	children := w.t.rec(id).children
	if len(children) == 0 {
		return noID
	}
	if w.dir == Reverse {
		return children[len(children)-1]
	}

	return children[0]
}

func (w *walker) next(id ID) ID {
	if w.dir == Reverse {
		return w.t.rec(id).left
	}

	return w.t.rec(id).right
}

func verdict(a Action) signal {
	switch a {
	case Stop:
		return sigStop
	case SkipSiblings:
		return sigSkipSiblings
	default:
		return sigNext
	}
}

func (w *walker) postThenSelf(id ID) signal {
	for c := w.first(id); c != noID; c = w.next(c) {
		s := w.postThenSelf(c)
		if s == sigStop {
			return sigStop
		}
		if s == sigSkipSiblings {
			break
		}
	}

	return verdict(w.call(id, Visit))
}

func (w *walker) selfThenChildren(id ID) signal {
	switch a := w.call(id, Visit); a {
	case Stop, SkipSiblings:
		return verdict(a)
	case SkipChildren:
		return sigNext
	}

	for c := w.first(id); c != noID; c = w.next(c) {
		s := w.selfThenChildren(c)
		if s == sigStop {
			return sigStop
		}
		if s == sigSkipSiblings {
			break
		}
	}

	return sigNext
}

func (w *walker) enterExit(id ID, transit bool) signal {
	if len(w.t.rec(id).children) == 0 {
		return verdict(w.call(id, Leaf))
	}

	a := w.call(id, Enter)
	if a == Stop {
		return sigStop
	}
	skipSiblings := a == SkipSiblings

	if a == Continue {
		c := w.first(id)
		for c != noID {
			s := w.enterExit(c, transit)
			if s == sigStop {
				return sigStop
			}
			if s == sigSkipSiblings {
				break
			}

			nc := w.next(c)
			if transit && nc != noID {
				ta := w.call(id, Transit)
				if ta == Stop {
					return sigStop
				}
				if ta == SkipSiblings {
					skipSiblings = true
				}
				if ta != Continue {
					break
				}
			}
			c = nc
		}
	}

	ea := w.call(id, Exit)
	if ea == Stop {
		return sigStop
	}
	if ea == SkipSiblings || skipSiblings {
		return sigSkipSiblings
	}

	return sigNext
}
