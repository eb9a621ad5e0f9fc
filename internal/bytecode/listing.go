package bytecode

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/txtar"

	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// ListingExt is the extension of listing members inside an archive.
const ListingExt = ".lst"

// ParseListing reads every method of a textual listing.
func ParseListing(r io.Reader) ([]*Method, error) {
	p := &listingParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		if err := p.feed(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan listing")
	}

	if p.cur != nil {
		return nil, fault.New(fault.FMT000ListingSyntax, "line %d: method %s is not closed with .end", p.line, p.cur.Name)
	}

	return p.methods, nil
}

// ReadArchive reads every listing member of a txtar archive, in member order.
func ReadArchive(data []byte) ([]*Method, error) {
	ar := txtar.Parse(data)

	var res []*Method
	for _, f := range ar.Files {
		if filepath.Ext(f.Name) != ListingExt {
			continue
		}

		ms, err := ParseListing(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "archive member %s", f.Name)
		}
		res = append(res, ms...)
	}

	return res, nil
}

// ReadFile reads a listing or, for the .txtar extension, an archive of listings.
func ReadFile(path string) ([]*Method, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}

	var ms []*Method
	if filepath.Ext(path) == ".txtar" {
		ms, err = ReadArchive(data)
	} else {
		ms, err = ParseListing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return ms, nil
}

type listingParser struct {
	line    int
	cur     *Method
	methods []*Method
}

func (p *listingParser) feed(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case ".method":
		if p.cur != nil {
			return p.errorf("method %s is not closed with .end", p.cur.Name)
		}
		if len(fields) != 3 {
			return p.errorf(".method wants a name and a code size")
		}
		size, err := p.number(fields[2])
		if err != nil {
			return err
		}
		p.cur = &Method{
			Name:     fields[1],
			CodeSize: size,
		}
		return nil

	case ".end":
		if p.cur == nil {
			return p.errorf(".end outside of a method")
		}
		p.cur.Sort()
		p.methods = append(p.methods, p.cur)
		p.cur = nil
		return nil

	case ".try":
		if p.cur == nil {
			return p.errorf(".try outside of a method")
		}
		region, err := p.try(fields[1:])
		if err != nil {
			return err
		}
		p.cur.Tries = append(p.cur.Tries, region)
		return nil
	}

	if p.cur == nil {
		return p.errorf("instruction outside of a method")
	}
	insn, err := p.instruction(fields)
	if err != nil {
		return err
	}
	p.cur.Instructions = append(p.cur.Instructions, insn)

	return nil
}

func (p *listingParser) instruction(fields []string) (*Instruction, error) {
	if len(fields) < 3 {
		return nil, p.errorf("instruction wants an offset, a size and a mnemonic")
	}

	off, err := p.number(fields[0])
	if err != nil {
		return nil, err
	}
	size, err := p.number(fields[1])
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, p.errorf("instruction at 0x%04x has zero size", off)
	}

	insn := &Instruction{
		Offset:   off,
		Size:     size,
		Kind:     KindOfMnemonic(fields[2]),
		Mnemonic: fields[2],
	}

	rest := fields[3:]
	if len(rest) == 0 {
		return insn, nil
	}
	if rest[0] != "->" {
		return nil, p.errorf("unexpected %q after mnemonic, want ->", rest[0])
	}
	rest = rest[1:]
	if len(rest) == 0 {
		return nil, p.errorf("-> without targets")
	}
	for _, f := range rest {
		for _, part := range strings.Split(f, ",") {
			if part == "" {
				continue
			}
			t, err := p.number(part)
			if err != nil {
				return nil, err
			}
			insn.Targets = append(insn.Targets, t)
		}
	}

	return insn, nil
}

func (p *listingParser) try(fields []string) (TryRegion, error) {
	if len(fields) < 2 {
		return TryRegion{}, p.errorf(".try wants a start and a size")
	}

	start, err := p.number(fields[0])
	if err != nil {
		return TryRegion{}, err
	}
	size, err := p.number(fields[1])
	if err != nil {
		return TryRegion{}, err
	}
	region := TryRegion{
		Start: start,
		Size:  size,
	}

	rest := fields[2:]
	for len(rest) > 0 {
		switch rest[0] {
		case "catch":
			if len(rest) < 3 {
				return TryRegion{}, p.errorf("catch wants a type and a handler offset")
			}
			off, err := p.number(rest[2])
			if err != nil {
				return TryRegion{}, err
			}
			region.Handlers = append(region.Handlers, Handler{
				Type:   rest[1],
				Offset: off,
			})
			rest = rest[3:]

		case "catchall":
			if len(rest) < 2 {
				return TryRegion{}, p.errorf("catchall wants a handler offset")
			}
			if region.HasCatchAll {
				return TryRegion{}, p.errorf("duplicate catchall")
			}
			off, err := p.number(rest[1])
			if err != nil {
				return TryRegion{}, err
			}
			region.CatchAll = off
			region.HasCatchAll = true
			rest = rest[2:]

		default:
			return TryRegion{}, p.errorf("unexpected %q in .try", rest[0])
		}
	}

	return region, nil
}

func (p *listingParser) number(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, p.errorf("invalid number %q", s)
	}

	return uint32(v), nil
}

func (p *listingParser) errorf(format string, a ...any) error {
	return fault.New(fault.FMT000ListingSyntax, "line %d: "+format, append([]any{p.line}, a...)...)
}
