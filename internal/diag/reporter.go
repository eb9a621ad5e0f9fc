// Package diag collects the failures of a batch reconstruction so that they
// can be summarized once every method has been processed.
package diag

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Reporter collects reports. It is safe for concurrent use.
type Reporter struct {
	mu      sync.Mutex
	reports []Report
}

// Report is a single failure of a method.
type Report struct {
	Phase  Phase
	Method string

	// Code is the failure code when the failure is a classified one,
	// HasCode tells.
	Code    fault.Code
	HasCode bool

	Offset    uint32
	HasOffset bool

	Message string
}

func (r Report) String() string {
	return fmt.Sprintf("[%s] %s: %s", r.Phase, r.Method, r.Message)
}

// Phase marks the reconstruction stage a report comes from.
type Phase int

const (
	phaseInvalid Phase = iota
	PhaseInput         // listing decoding
	PhaseFlow          // flow graph construction
	PhaseTree          // address-range tree construction
	PhaseTry           // try/catch reconciliation
	PhaseCircuits      // circuit enumeration
)

var phaseValueMap = map[Phase]string{
	PhaseInput:    "input",
	PhaseFlow:     "flow",
	PhaseTree:     "tree",
	PhaseTry:      "try",
	PhaseCircuits: "circuits",
}

func (p Phase) String() string {
	v, ok := phaseValueMap[p]
	if !ok {
		return fmt.Sprintf("invalid(%d)", p)
	}

	return v
}

// PhaseReporter binds a Reporter to a fixed phase.
type PhaseReporter struct {
	parent *Reporter
	phase  Phase
}

// Phase returns a reporter that records everything under the given phase.
func (r *Reporter) Phase(p Phase) *PhaseReporter {
	return &PhaseReporter{parent: r, phase: p}
}

// Report adds a new record.
func (r *Reporter) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Report records the failure of a method under the bound phase. Classified
// failures keep their code and offset.
func (rp *PhaseReporter) Report(method string, err error) {
	rep := Report{
		Phase:   rp.phase,
		Method:  method,
		Message: err.Error(),
	}

	var e *fault.Error
	if errors.As(err, &e) {
		rep.Code = e.Code
		rep.HasCode = true
		rep.Offset = e.Offset
		rep.HasOffset = e.HasOffset
	}

	rp.parent.Report(rep)
}

// Reports returns a snapshot of all collected records.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Len returns the number of collected records.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Summary writes every collected report, one per line.
func (r *Reporter) Summary(w io.Writer) error {
	for _, rep := range r.Reports() {
		if _, err := fmt.Fprintln(w, rep); err != nil {
			return errors.Wrap(err, "write summary")
		}
	}

	return nil
}
