package settlement

import (
	"errors"
	"testing"
)

func TestStageTransitions(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageReceived, StageLedgerChecked, true},
		{StageLedgerChecked, StageShortCircuited, true},
		{StageLedgerChecked, StageReserving, true},
		{StageReserving, StageRejected, true},
		{StageRecomputing, StageDone, true},
		{StageReceived, StageReserving, false},
		{StageReserved, StageGranted, false},
		{StageDone, StageRejected, false},
		{StageShortCircuited, StageReserving, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanAdvance(tt.to); got != tt.want {
				t.Errorf("CanAdvance = %v, want %v", got, tt.want)
			}
		})
	}

	for _, s := range []Stage{StageShortCircuited, StageDone, StageRejected} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StageGranted.Terminal() {
		t.Error("GRANTED should not be terminal")
	}
}

func TestStageTrackerStickyError(t *testing.T) {
	st := newStageTracker()
	st.to(StageLedgerChecked)
	st.to(StageReserving)
	st.to(StageGranted) // skips RESERVED and GRANTING
	st.to(StageReserved)

	if !errors.Is(st.err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", st.err)
	}
	if st.current() != StageReserving {
		t.Errorf("current = %s, want RESERVING", st.current())
	}
}

func TestStageTrackerRewind(t *testing.T) {
	st := newStageTracker()
	for _, s := range []Stage{StageLedgerChecked, StageReserving, StageReserved, StageGranting} {
		st.to(s)
	}

	// A retried transaction body starts over from RESERVING.
	st.rewind(StageReserving)
	st.to(StageReserved)
	st.to(StageGranting)
	st.to(StageGranted)

	if st.err != nil {
		t.Fatal(st.err)
	}
	want := "RECEIVED > LEDGER_CHECKED > RESERVING > RESERVED > GRANTING > GRANTED"
	if got := st.String(); got != want {
		t.Errorf("trail = %q, want %q", got, want)
	}
}
