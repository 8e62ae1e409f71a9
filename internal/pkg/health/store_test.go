package health

import (
	"errors"
	"testing"
	"time"
)

func TestParseFailureDisablesAfterThreshold(t *testing.T) {
	s := NewStore()
	err := errors.New("unexpected page structure")

	if s.RecordParseFailure("flashscore", err, 3) {
		t.Error("first parse failure should not disable")
	}
	if s.RecordParseFailure("flashscore", err, 3) {
		t.Error("second parse failure should not disable")
	}
	if !s.RecordParseFailure("flashscore", err, 3) {
		t.Error("third parse failure should disable")
	}
	if !s.IsDisabled("flashscore") {
		t.Error("source should be disabled")
	}
}

func TestTransientFailuresNeverDisable(t *testing.T) {
	s := NewStore()
	err := errors.New("timeout")

	for i := 0; i < 50; i++ {
		s.RecordTransientFailure("sofascore", err)
	}
	if s.IsDisabled("sofascore") {
		t.Error("transient failures must never disable a source")
	}
}

func TestSuccessResetsCounters(t *testing.T) {
	s := NewStore()
	s.RecordParseFailure("flashscore", errors.New("bad html"), 3)
	s.RecordTransientFailure("flashscore", errors.New("timeout"))
	s.RecordSuccess("flashscore", 12, 2*time.Second)

	sts := s.Statuses()
	if len(sts) != 1 {
		t.Fatalf("got %d statuses, want 1", len(sts))
	}
	st := sts[0]
	if st.ConsecutiveParse != 0 || st.ConsecutiveTransient != 0 {
		t.Errorf("counters not reset: %+v", st)
	}
	if st.LastMatchCount != 12 {
		t.Errorf("last match count = %d, want 12", st.LastMatchCount)
	}
	if len(s.Degraded()) != 0 {
		t.Errorf("no source should be degraded after success: %v", s.Degraded())
	}
}

func TestEnableClearsDisabled(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		s.RecordParseFailure("flashscore", errors.New("bad html"), 3)
	}
	s.Enable("flashscore")
	if s.IsDisabled("flashscore") {
		t.Error("Enable should clear the disabled flag")
	}
}
