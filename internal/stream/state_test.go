package stream

import (
	"errors"
	"testing"
)

func TestLifecycleHappyPath(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Fatalf("expected IDLE, got %v", lc.State())
	}
	if lc.CanAcceptMedia() {
		t.Error("IDLE must not accept media")
	}

	if err := lc.Start("MZ1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if lc.State() != StateActive {
		t.Fatalf("expected ACTIVE, got %v", lc.State())
	}
	if !lc.CanAcceptMedia() {
		t.Error("ACTIVE must accept media")
	}
	if lc.StreamSID() != "MZ1" {
		t.Errorf("expected stream SID MZ1, got %q", lc.StreamSID())
	}

	if !lc.RequestStop() {
		t.Error("stop without playback must tear down immediately")
	}
	if lc.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", lc.State())
	}
}

func TestLifecycleDoubleStart(t *testing.T) {
	lc := NewLifecycle()
	if err := lc.Start("MZ1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := lc.Start("MZ2"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second start = %v, want ErrAlreadyStarted", err)
	}
	lc.Close()
	if err := lc.Start("MZ3"); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("start after close = %v, want ErrStreamClosed", err)
	}
}

func TestSpeakingLatchSerializesPlayback(t *testing.T) {
	lc := NewLifecycle()
	lc.Start("MZ1")

	if err := lc.BeginSpeaking(); err != nil {
		t.Fatalf("BeginSpeaking: %v", err)
	}
	if !lc.Speaking() {
		t.Error("latch not set")
	}
	if err := lc.BeginSpeaking(); !errors.Is(err, ErrAlreadySpeaking) {
		t.Errorf("concurrent BeginSpeaking = %v, want ErrAlreadySpeaking", err)
	}

	if teardown := lc.EndSpeaking(); teardown {
		t.Error("EndSpeaking without pending stop must not request teardown")
	}
	if lc.Speaking() {
		t.Error("latch not cleared")
	}
	if err := lc.BeginSpeaking(); err != nil {
		t.Errorf("BeginSpeaking after release: %v", err)
	}
}

func TestStopDuringPlaybackDefersTeardown(t *testing.T) {
	lc := NewLifecycle()
	lc.Start("MZ1")
	lc.BeginSpeaking()

	if lc.RequestStop() {
		t.Fatal("stop during playback must defer teardown")
	}
	if lc.State() != StateStopping {
		t.Fatalf("expected STOPPING, got %v", lc.State())
	}
	if lc.CanAcceptMedia() {
		t.Error("STOPPING must not accept media")
	}
	if err := lc.BeginSpeaking(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("BeginSpeaking while stopping = %v, want ErrStreamClosed", err)
	}

	if !lc.EndSpeaking() {
		t.Fatal("EndSpeaking with pending stop must request teardown")
	}
	if lc.State() != StateClosed {
		t.Errorf("expected CLOSED after deferred teardown, got %v", lc.State())
	}
}

func TestBeginSpeakingBeforeStart(t *testing.T) {
	lc := NewLifecycle()
	if err := lc.BeginSpeaking(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("BeginSpeaking in IDLE = %v, want ErrNotStarted", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	lc := NewLifecycle()
	lc.Start("MZ1")

	if !lc.Close() {
		t.Error("first close must report the transition")
	}
	if lc.Close() {
		t.Error("second close must be a no-op")
	}
	if lc.RequestStop() {
		t.Error("stop after close must not request teardown again")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateActive, "ACTIVE"},
		{StateStopping, "STOPPING"},
		{StateClosed, "CLOSED"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
	if StateActive.IsTerminal() || !StateClosed.IsTerminal() {
		t.Error("IsTerminal wrong for ACTIVE/CLOSED")
	}
}
