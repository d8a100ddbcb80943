package settlement

import (
	"fmt"
	"strings"
)

// Stage is a step of the settlement state machine.
//
//	RECEIVED → LEDGER_CHECKED → SHORT_CIRCUITED
//	                          → RESERVING → RESERVED → GRANTING → GRANTED → RECOMPUTING → DONE
//	                          (any step from RESERVING on) → REJECTED
type Stage string

const (
	StageReceived       Stage = "RECEIVED"
	StageLedgerChecked  Stage = "LEDGER_CHECKED"
	StageShortCircuited Stage = "SHORT_CIRCUITED"
	StageReserving      Stage = "RESERVING"
	StageReserved       Stage = "RESERVED"
	StageGranting       Stage = "GRANTING"
	StageGranted        Stage = "GRANTED"
	StageRecomputing    Stage = "RECOMPUTING"
	StageDone           Stage = "DONE"
	StageRejected       Stage = "REJECTED"
)

var stageTransitions = map[Stage][]Stage{
	StageReceived:      {StageLedgerChecked},
	StageLedgerChecked: {StageShortCircuited, StageReserving},
	StageReserving:     {StageReserved, StageRejected},
	StageReserved:      {StageGranting, StageRejected},
	StageGranting:      {StageGranted, StageRejected},
	StageGranted:       {StageRecomputing, StageRejected},
	StageRecomputing:   {StageDone, StageRejected},
}

// CanAdvance reports whether the machine may move from s to next.
func (s Stage) CanAdvance(next Stage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a settlement.
func (s Stage) Terminal() bool {
	return s == StageShortCircuited || s == StageDone || s == StageRejected
}

// stageTracker walks the state machine for one settlement. The first
// illegal move is kept as a sticky error and every later move is ignored.
type stageTracker struct {
	trail []Stage
	err   error
}

func newStageTracker() *stageTracker {
	return &stageTracker{trail: []Stage{StageReceived}}
}

func (t *stageTracker) current() Stage {
	return t.trail[len(t.trail)-1]
}

func (t *stageTracker) to(next Stage) {
	if t.err != nil {
		return
	}
	cur := t.current()
	if !cur.CanAdvance(next) {
		t.err = fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
		return
	}
	t.trail = append(t.trail, next)
}

// rewind truncates the trail back to the last occurrence of s. Transaction
// bodies call it so that a retried body walks the same stages again.
func (t *stageTracker) rewind(s Stage) {
	for i := len(t.trail) - 1; i >= 0; i-- {
		if t.trail[i] == s {
			t.trail = t.trail[:i+1]
			return
		}
	}
}

func (t *stageTracker) String() string {
	parts := make([]string, len(t.trail))
	for i, s := range t.trail {
		parts[i] = string(s)
	}
	return strings.Join(parts, " > ")
}
