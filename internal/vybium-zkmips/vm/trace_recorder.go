package vm

import (
	"fmt"
	"slices"
)

// TraceRecorder accumulates cycles while the machine runs.
type TraceRecorder struct {
	trace   *Trace
	discard bool
}

// NewTraceRecorder creates a recorder for a machine. When discard is set only
// multiplicities are tracked; the cycles themselves are dropped.
func NewTraceRecorder(vm *VMState, discard bool) (*TraceRecorder, error) {
	if vm == nil || vm.Program == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}
	return &TraceRecorder{
		trace: &Trace{
			StartOffset:    vm.PC,
			Multiplicities: make([]uint64, vm.Program.Len()),
			PublicTape:     slices.Clone(vm.Program.PublicTape),
			PrivateTape:    slices.Clone(vm.PrivateTape.words),
		},
		discard: discard,
	}, nil
}

// RecordCycle appends an executed cycle
func (tr *TraceRecorder) RecordCycle(c Cycle) {
	tr.trace.Multiplicities[c.PC]++
	if !tr.discard {
		tr.trace.Cycles = append(tr.trace.Cycles, c)
	}
}

// Finish seals the trace once the machine has halted
func (tr *TraceRecorder) Finish(vm *VMState) (*Trace, error) {
	if vm.Status != Halted {
		return nil, fmt.Errorf("cannot finish trace of a %s machine", vm.Status)
	}
	tr.trace.Answer = vm.Answer
	tr.trace.PublicReads = vm.PublicTape.Cursor()
	tr.trace.PrivateReads = vm.PrivateTape.Cursor()
	if tr.discard {
		return nil, nil
	}
	return tr.trace, nil
}
