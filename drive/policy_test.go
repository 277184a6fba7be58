package drive

import (
	"context"
	"testing"

	"github.com/driftlock/drover/checkpoint"
)

// mockAssessor is a test double for CompletionAssessor. It replays scripted
// verdicts and records what it was asked.
type mockAssessor struct {
	verdicts []bool
	calls    int
	lastSeen []string
}

func (m *mockAssessor) Assess(ctx context.Context, recent []string, cfg checkpoint.Config) bool {
	m.lastSeen = append([]string(nil), recent...)
	v := false
	if m.calls < len(m.verdicts) {
		v = m.verdicts[m.calls]
	}
	m.calls++
	return v
}

func enabledCheckpoint() *checkpoint.Config {
	cfg := checkpoint.Config{Enabled: true}.WithDefaults()
	return &cfg
}

func success(turnCount int) TurnResult {
	return TurnResult{Outcome: OutcomeSuccess, TurnCount: turnCount}
}

func TestAutoContinueUpToLimit(t *testing.T) {
	p := NewPolicy(PolicyOptions{})

	for i := 1; i <= DefaultAutoContinueLimit; i++ {
		d := p.Evaluate(context.Background(), success(1))
		if !d.Continue {
			t.Fatalf("stop %d: expected auto-continue", i)
		}
		if d.Cause != CauseAutoContinue {
			t.Errorf("stop %d: expected cause %q, got %q", i, CauseAutoContinue, d.Cause)
		}
		if d.Message != AutoContinueMessage {
			t.Errorf("stop %d: unexpected message %q", i, d.Message)
		}
		if p.AutoContinueStreak() != i {
			t.Errorf("stop %d: expected streak %d, got %d", i, i, p.AutoContinueStreak())
		}
	}

	// The limit-th+1 premature stop completes the turn.
	d := p.Evaluate(context.Background(), success(1))
	if d.Continue {
		t.Fatal("expected turn complete past the streak limit")
	}
	if p.AutoContinueStreak() != 0 {
		t.Errorf("expected streak reset to 0, got %d", p.AutoContinueStreak())
	}
}

func TestAutoContinueStreakResetsOnRealWork(t *testing.T) {
	p := NewPolicy(PolicyOptions{})

	if d := p.Evaluate(context.Background(), success(1)); !d.Continue {
		t.Fatal("expected auto-continue on first premature stop")
	}
	if d := p.Evaluate(context.Background(), success(1)); !d.Continue {
		t.Fatal("expected auto-continue on second premature stop")
	}

	// A multi-turn success clears the streak.
	if d := p.Evaluate(context.Background(), success(7)); d.Continue {
		t.Fatal("expected turn complete on multi-turn success")
	}
	if p.AutoContinueStreak() != 0 {
		t.Errorf("expected streak 0 after real work, got %d", p.AutoContinueStreak())
	}

	// The heuristic fires afresh.
	if d := p.Evaluate(context.Background(), success(1)); !d.Continue {
		t.Fatal("expected auto-continue after streak reset")
	}
	if p.AutoContinueStreak() != 1 {
		t.Errorf("expected streak 1, got %d", p.AutoContinueStreak())
	}
}

func TestAutoContinueSkipsErrorsAndCompaction(t *testing.T) {
	p := NewPolicy(PolicyOptions{})

	if d := p.Evaluate(context.Background(), TurnResult{Outcome: OutcomeError, TurnCount: 1}); d.Continue {
		t.Fatal("error outcome must not auto-continue")
	}

	p.SetCompacting(true)
	if d := p.Evaluate(context.Background(), success(1)); d.Continue {
		t.Fatal("compacting turn must not auto-continue")
	}
	p.SetCompacting(false)

	if d := p.Evaluate(context.Background(), success(1)); !d.Continue {
		t.Fatal("expected auto-continue once compaction is over")
	}
}

func TestCustomAutoContinueLimit(t *testing.T) {
	p := NewPolicy(PolicyOptions{AutoContinueLimit: 1})

	if d := p.Evaluate(context.Background(), success(1)); !d.Continue {
		t.Fatal("expected one auto-continue")
	}
	if d := p.Evaluate(context.Background(), success(1)); d.Continue {
		t.Fatal("expected turn complete with limit 1")
	}
}

func TestSmartContinueUntilAssessorSaysDone(t *testing.T) {
	assessor := &mockAssessor{verdicts: []bool{false, true}}
	p := NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint(), Assessor: assessor})

	p.ObserveAssistantText("still refactoring the parser")

	d := p.Evaluate(context.Background(), success(5))
	if !d.Continue {
		t.Fatal("expected smart continue while the assessor says not done")
	}
	if d.Cause != CauseSmartContinue {
		t.Errorf("expected cause %q, got %q", CauseSmartContinue, d.Cause)
	}
	if d.Message != checkpoint.DefaultContinueMessage {
		t.Errorf("unexpected continue message %q", d.Message)
	}
	if p.SmartContinueCount() != 1 {
		t.Errorf("expected smart count 1, got %d", p.SmartContinueCount())
	}

	// Second result: assessor now says done, turn completes.
	d = p.Evaluate(context.Background(), success(5))
	if d.Continue {
		t.Fatal("expected turn complete once the assessor says done")
	}

	// Semantic completion latches: no further assessor calls this cycle.
	d = p.Evaluate(context.Background(), success(5))
	if d.Continue {
		t.Fatal("expected turn complete while semantic completion is latched")
	}
	if assessor.calls != 2 {
		t.Errorf("expected 2 assessor calls, got %d", assessor.calls)
	}
}

func TestSmartContinueBudget(t *testing.T) {
	cfg := enabledCheckpoint()
	cfg.MaxRetries = 2
	assessor := &mockAssessor{verdicts: []bool{false, false, false}}
	p := NewPolicy(PolicyOptions{Checkpoint: cfg, Assessor: assessor})

	for i := 1; i <= 2; i++ {
		if d := p.Evaluate(context.Background(), success(4)); !d.Continue {
			t.Fatalf("retry %d: expected smart continue", i)
		}
	}

	// Budget exhausted: no further continuations or assessor calls.
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("expected turn complete past the retry budget")
	}
	if assessor.calls != 2 {
		t.Errorf("expected 2 assessor calls, got %d", assessor.calls)
	}
}

func TestSmartContinueCounterIsSessionScoped(t *testing.T) {
	cfg := enabledCheckpoint()
	cfg.MaxRetries = 2
	assessor := &mockAssessor{verdicts: []bool{false, false, false}}
	p := NewPolicy(PolicyOptions{Checkpoint: cfg, Assessor: assessor})

	for i := 1; i <= 2; i++ {
		if d := p.Evaluate(context.Background(), success(4)); !d.Continue {
			t.Fatalf("retry %d: expected smart continue", i)
		}
	}
	if p.SmartContinueCount() != 2 {
		t.Fatalf("expected smart count 2, got %d", p.SmartContinueCount())
	}

	// A fresh caller message re-arms the completion latch but never
	// refunds the budget: the counter only grows within a session.
	p.NoteUserMessage()
	if p.SmartContinueCount() != 2 {
		t.Fatalf("smart count decreased across a caller message: got %d", p.SmartContinueCount())
	}
	p.ObserveAssistantText("still going")
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("expected turn complete once the session budget is spent")
	}
	if assessor.calls != 2 {
		t.Errorf("expected 2 assessor calls, got %d", assessor.calls)
	}
}

func TestCompletionMarkerShortCircuitsAssessor(t *testing.T) {
	assessor := &mockAssessor{verdicts: []bool{false}}
	p := NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint(), Assessor: assessor})

	p.ObserveAssistantText("All items finished. " + checkpoint.DefaultCompletionMarker)

	if d := p.Evaluate(context.Background(), success(3)); d.Continue {
		t.Fatal("expected turn complete when the marker is present")
	}
	if assessor.calls != 0 {
		t.Errorf("marker present: assessor must not be called, got %d calls", assessor.calls)
	}

	// Latched until the next caller message.
	if d := p.Evaluate(context.Background(), success(3)); d.Continue {
		t.Fatal("expected latched completion to hold")
	}
	p.NoteUserMessage()
	p.ObserveAssistantText("starting the next task")
	if d := p.Evaluate(context.Background(), success(3)); !d.Continue {
		t.Fatal("expected smart gate re-armed after a fresh caller message")
	}
}

func TestSemanticGatePreconditions(t *testing.T) {
	assessor := &mockAssessor{}

	// Disabled checkpoint.
	cfg := enabledCheckpoint()
	cfg.Enabled = false
	p := NewPolicy(PolicyOptions{Checkpoint: cfg, Assessor: assessor})
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("disabled checkpoint must not smart-continue")
	}

	// No checkpoint at all.
	p = NewPolicy(PolicyOptions{Assessor: assessor})
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("missing checkpoint must not smart-continue")
	}

	// Error outcome.
	p = NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint(), Assessor: assessor})
	if d := p.Evaluate(context.Background(), TurnResult{Outcome: OutcomeError, TurnCount: 4}); d.Continue {
		t.Fatal("error outcome must not smart-continue")
	}

	// Compacting.
	p = NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint(), Assessor: assessor})
	p.SetCompacting(true)
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("compacting turn must not smart-continue")
	}

	// Nil assessor with an active checkpoint.
	p = NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint()})
	if d := p.Evaluate(context.Background(), success(4)); d.Continue {
		t.Fatal("nil assessor must not smart-continue")
	}

	if assessor.calls != 0 {
		t.Errorf("expected 0 assessor calls, got %d", assessor.calls)
	}
}

func TestAutoContinueTakesPrecedenceOverSemantic(t *testing.T) {
	assessor := &mockAssessor{verdicts: []bool{false}}
	p := NewPolicy(PolicyOptions{Checkpoint: enabledCheckpoint(), Assessor: assessor})

	d := p.Evaluate(context.Background(), success(1))
	if !d.Continue || d.Cause != CauseAutoContinue {
		t.Fatalf("expected structural gate to fire first, got %+v", d)
	}
	if assessor.calls != 0 {
		t.Errorf("structural gate fired: assessor must not be called, got %d calls", assessor.calls)
	}
}

func TestRecentTextWindowEviction(t *testing.T) {
	cfg := enabledCheckpoint()
	cfg.BufferSize = 3
	assessor := &mockAssessor{verdicts: []bool{false}}
	p := NewPolicy(PolicyOptions{Checkpoint: cfg, Assessor: assessor})

	for _, s := range []string{"one", "two", "three", "four", ""} {
		p.ObserveAssistantText(s)
	}

	got := p.RecentTexts()
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("expected window %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected window %v, got %v", want, got)
		}
	}

	// The assessor sees the same window.
	p.Evaluate(context.Background(), success(4))
	if len(assessor.lastSeen) != 3 || assessor.lastSeen[0] != "two" {
		t.Errorf("assessor saw window %v, want %v", assessor.lastSeen, want)
	}
}
