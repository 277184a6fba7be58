package drive

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftlock/drover/checkpoint"
)

// DefaultAutoContinueLimit bounds how many consecutive premature stops are
// auto-continued before the policy defers to the caller.
const DefaultAutoContinueLimit = 3

// AutoContinueMessage is the fixed nudge pushed on a structural
// continuation.
const AutoContinueMessage = "You stopped before completing the task. " +
	"Pick up exactly where you left off and continue working."

// Cause records which gate produced a continuation decision.
type Cause string

const (
	CauseAutoContinue  Cause = "auto_continue"
	CauseSmartContinue Cause = "smart_continue"
)

// Decision is the policy's answer for one turn result. A zero Decision
// means "turn complete": hand control back to the caller.
type Decision struct {
	Continue bool
	Cause    Cause
	Message  string
}

// CompletionAssessor is the semantic judgment the smart gate consults.
// assess.Assessor satisfies it; tests substitute fakes.
type CompletionAssessor interface {
	Assess(ctx context.Context, recent []string, cfg checkpoint.Config) bool
}

// TurnResult is the per-turn input to the policy.
type TurnResult struct {
	Outcome   TurnOutcome
	TurnCount int
}

// textRing is a fixed-capacity FIFO of assistant text chunks. Pushing past
// capacity evicts the oldest entry.
type textRing struct {
	capacity int
	items    []string
}

func newTextRing(capacity int) *textRing {
	if capacity <= 0 {
		capacity = checkpoint.DefaultBufferSize
	}
	return &textRing{capacity: capacity}
}

func (r *textRing) Push(s string) {
	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, s)
}

func (r *textRing) Items() []string {
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

func (r *textRing) Len() int { return len(r.items) }

// Policy is the per-session continuation decision engine. It is owned by
// exactly one driver and never shared; all state here is session-scoped.
type Policy struct {
	autoLimit  int
	autoStreak int

	checkpoint *checkpoint.Config
	assessor   CompletionAssessor
	smartCount int
	// semanticDone latches once the completion marker is observed or the
	// assessor judges the task complete; the smart gate stays quiet until
	// the next caller-supplied message.
	semanticDone bool

	recent     *textRing
	compacting bool

	log zerolog.Logger
}

// PolicyOptions configures a Policy.
type PolicyOptions struct {
	// Checkpoint enables the semantic gate when non-nil and Enabled.
	Checkpoint *checkpoint.Config
	// Assessor is consulted by the semantic gate. Ignored without an
	// active checkpoint.
	Assessor CompletionAssessor
	// AutoContinueLimit overrides DefaultAutoContinueLimit when positive.
	AutoContinueLimit int
	Logger            zerolog.Logger
}

// NewPolicy creates a policy for one session.
func NewPolicy(opts PolicyOptions) *Policy {
	limit := opts.AutoContinueLimit
	if limit <= 0 {
		limit = DefaultAutoContinueLimit
	}

	bufferSize := 0
	cfg := opts.Checkpoint
	if cfg != nil {
		normalized := cfg.WithDefaults()
		cfg = &normalized
		bufferSize = cfg.BufferSize
	}

	return &Policy{
		autoLimit:  limit,
		checkpoint: cfg,
		assessor:   opts.Assessor,
		recent:     newTextRing(bufferSize),
		log:        opts.Logger,
	}
}

// ObserveAssistantText appends a chunk of assistant output to the rolling
// window the semantic gate reads.
func (p *Policy) ObserveAssistantText(text string) {
	if text == "" {
		return
	}
	p.recent.Push(text)
}

// NoteUserMessage records that a fresh caller-supplied message is about to
// start a turn. It re-arms the semantic gate for the new work: the
// completion latch clears and the text window is flushed so a marker from
// the previous task cannot leak into this one. The smart-continue counter
// is session-scoped and never decreases.
func (p *Policy) NoteUserMessage() {
	p.semanticDone = false
	p.recent = newTextRing(p.recent.capacity)
}

// SetCompacting flags whether a compaction command is in flight. Neither
// gate fires while it is set.
func (p *Policy) SetCompacting(v bool) { p.compacting = v }

// Compacting reports the compaction-in-flight flag.
func (p *Policy) Compacting() bool { return p.compacting }

// AutoContinueStreak returns the current consecutive premature-stop count.
func (p *Policy) AutoContinueStreak() int { return p.autoStreak }

// SmartContinueCount returns how many semantic continuations have fired.
func (p *Policy) SmartContinueCount() int { return p.smartCount }

// RecentTexts returns a copy of the rolling assistant-text window.
func (p *Policy) RecentTexts() []string { return p.recent.Items() }

// Evaluate decides what to do with one completed turn. The structural gate
// is checked strictly before the semantic gate; when it fires the semantic
// gate is not consulted at all.
func (p *Policy) Evaluate(ctx context.Context, res TurnResult) Decision {
	// Structural gate: a successful turn that ended after at most one
	// model turn is a premature stop, worth nudging up to the streak
	// limit.
	if res.Outcome == OutcomeSuccess && res.TurnCount <= 1 && !p.compacting && p.autoStreak < p.autoLimit {
		p.autoStreak++
		p.log.Info().
			Int("streak", p.autoStreak).
			Int("limit", p.autoLimit).
			Msg("auto-continuing premature stop")
		return Decision{Continue: true, Cause: CauseAutoContinue, Message: AutoContinueMessage}
	}
	// Any turn that is not auto-continued clears the streak.
	p.autoStreak = 0

	if d := p.evaluateSemantic(ctx, res); d.Continue {
		return d
	}

	return Decision{}
}

func (p *Policy) evaluateSemantic(ctx context.Context, res TurnResult) Decision {
	cfg := p.checkpoint
	if cfg == nil || !cfg.Enabled || p.compacting || p.semanticDone {
		return Decision{}
	}
	if p.smartCount >= cfg.MaxRetries {
		p.log.Debug().Int("count", p.smartCount).Msg("smart-continue budget exhausted")
		return Decision{}
	}
	if res.Outcome != OutcomeSuccess || res.TurnCount <= 1 {
		return Decision{}
	}

	if p.markerPresent(cfg.CompletionMarker) {
		p.log.Info().Str("marker", cfg.CompletionMarker).Msg("completion marker observed")
		p.semanticDone = true
		return Decision{}
	}

	if p.assessor == nil {
		return Decision{}
	}
	if p.assessor.Assess(ctx, p.recent.Items(), *cfg) {
		p.log.Info().Msg("assessor judged task complete")
		p.semanticDone = true
		return Decision{}
	}

	p.smartCount++
	p.log.Info().
		Int("count", p.smartCount).
		Int("limit", cfg.MaxRetries).
		Msg("smart-continuing unfinished task")
	return Decision{Continue: true, Cause: CauseSmartContinue, Message: cfg.ContinueMessage}
}

func (p *Policy) markerPresent(marker string) bool {
	if marker == "" {
		return false
	}
	for _, text := range p.recent.Items() {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
