package attempt

import (
	"context"
	"testing"
)

func TestCanTransition_Graph(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusNotStarted, StatusInProgress},
		{StatusInProgress, StatusPaused},
		{StatusPaused, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusPaused, StatusCompleted},
		{StatusNotStarted, StatusExpired},
		{StatusInProgress, StatusAbandoned},
		{StatusPaused, StatusExpired},
	}
	for _, e := range allowed {
		if !CanTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be allowed", e.from, e.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusNotStarted, StatusPaused},
		{StatusNotStarted, StatusCompleted},
		{StatusPaused, StatusPaused},
		{StatusCompleted, StatusInProgress},
		{StatusCompleted, StatusCompleted},
		{StatusExpired, StatusInProgress},
		{StatusAbandoned, StatusCompleted},
	}
	for _, e := range denied {
		if CanTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be rejected", e.from, e.to)
		}
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusAbandoned, StatusExpired} {
		for _, to := range []Status{StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted, StatusAbandoned, StatusExpired} {
			if CanTransition(terminal, to) {
				t.Errorf("terminal state %s must not transition to %s", terminal, to)
			}
		}
	}
}

func TestUpsertAnswer_OverwritesByQuestionID(t *testing.T) {
	a := Attempt{}
	a.UpsertAnswer(Answer{QuestionID: "q1", Selected: "A", Correct: false})
	a.UpsertAnswer(Answer{QuestionID: "q2", Selected: "B", Correct: true})
	a.UpsertAnswer(Answer{QuestionID: "q1", Selected: "C", Correct: true})

	if len(a.Answers) != 2 {
		t.Fatalf("expected 2 answers after overwrite, got %d", len(a.Answers))
	}
	got, ok := a.AnswerFor("q1")
	if !ok || got.Selected != "C" || !got.Correct {
		t.Fatalf("expected q1 answer overwritten with C/correct, got %+v", got)
	}
}

func TestRecordActivity_SuspicionLatches(t *testing.T) {
	a := Attempt{}
	for i := 0; i < 4; i++ {
		a.RecordActivity(ActivityTabSwitch)
	}
	if a.SuspiciousActivity {
		t.Fatalf("suspicion set too early at %d tab switches", a.TabSwitches)
	}
	a.RecordActivity(ActivityTabSwitch)
	if !a.SuspiciousActivity {
		t.Fatalf("expected suspicion after 5 tab switches")
	}
	// latched: further activity of any kind never clears it
	a.RecordActivity(ActivityFullscreenExit)
	if !a.SuspiciousActivity {
		t.Fatalf("suspicion must stay set")
	}

	b := Attempt{}
	for i := 0; i < 3; i++ {
		b.RecordActivity(ActivityFullscreenExit)
	}
	if !b.SuspiciousActivity {
		t.Fatalf("expected suspicion after 3 fullscreen exits")
	}
}

func TestMemoryStore_UpdateIfIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := Attempt{ID: "a1", UserID: "u1", Status: StatusNotStarted}
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	a.Status = StatusInProgress
	if err := store.UpdateIf(ctx, a, StatusNotStarted); err != nil {
		t.Fatalf("first CAS should win: %v", err)
	}

	// A racing duplicate of the same transition still expects NotStarted.
	dup := a
	dup.Status = StatusInProgress
	if err := store.UpdateIf(ctx, dup, StatusNotStarted); err != ErrConflict {
		t.Fatalf("expected ErrConflict for stale CAS, got %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status corrupted by stale write: %s", got.Status)
	}
}
