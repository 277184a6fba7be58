package drive

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftlock/drover/checkpoint"
)

// compactCommand is the special command whose completion the caller is
// notified about instead of being auto-continued.
const compactCommand = "/compact"

// compactionNotice is the text delivered through OnCompletionEvent once a
// compaction turn completes.
const compactionNotice = "Compaction complete"

// Message is one outbound message for the exchange. Mode is an opaque
// caller-defined label carried through unchanged; synthesized continuation
// messages reuse the mode of the last caller-supplied message.
type Message struct {
	Text string
	Mode string
}

// Exchange is the transport the driver feeds. Push is fire-and-forget into
// an unbounded outbound queue; Events yields the typed event stream in
// arrival order and is closed when the stream ends, after which Err
// reports the stream failure, if any.
type Exchange interface {
	Push(msg Message)
	End()
	Events() <-chan Event
	Err() error
}

// SessionLocator confirms that a session announced by the transport is
// durably recorded before the caller is told about it. discovery.Watcher
// implements it.
type SessionLocator interface {
	WaitForSession(ctx context.Context, sessionID string) error
}

// Callbacks is the caller-facing surface of one session. NextMessage,
// OnMessage and IsAborted are required; the rest may be nil.
type Callbacks struct {
	// NextMessage supplies the next caller message, suspending as long as
	// it needs to. A nil message ends the session cleanly.
	NextMessage func(ctx context.Context) (*Message, error)
	// OnReady signals that the driver finished a turn and is about to ask
	// for the next message.
	OnReady func()
	// OnSessionFound reports the transport's session id once it is
	// durably recorded.
	OnSessionFound func(sessionID string)
	// OnThinkingChange reports thinking-indicator transitions. Optional.
	OnThinkingChange func(thinking bool)
	// OnMessage receives every stream event, in arrival order, regardless
	// of continuation decisions.
	OnMessage func(ev Event)
	// OnCompletionEvent reports special-command completion notices.
	// Optional.
	OnCompletionEvent func(text string)
	// IsAborted reports whether the caller aborted the given tool call.
	IsAborted func(toolUseID string) bool
}

// Options configures a Driver.
type Options struct {
	Exchange  Exchange
	Callbacks Callbacks
	// Checkpoint enables the semantic continuation overlay when non-nil.
	Checkpoint *checkpoint.Config
	// Assessor backs the semantic gate. Ignored without a checkpoint.
	Assessor CompletionAssessor
	// Locator gates OnSessionFound on durable session recording. When nil
	// the announcement is forwarded immediately.
	Locator SessionLocator
	// AutoContinueLimit overrides the structural gate's streak limit.
	AutoContinueLimit int
	Logger            zerolog.Logger
}

// Driver runs the continuation control loop for one session. It is a
// single cooperative loop: the only suspension points are the event
// stream, NextMessage, the discovery wait, and the assessor's HTTP call.
type Driver struct {
	exchange  Exchange
	callbacks Callbacks
	policy    *Policy
	locator   SessionLocator

	runID    string
	mode     string
	thinking bool
	ended    bool

	log zerolog.Logger
}

// NewDriver creates a driver for one session.
func NewDriver(opts Options) *Driver {
	runID := uuid.NewString()
	log := opts.Logger.With().Str("run_id", runID).Logger()

	return &Driver{
		exchange:  opts.Exchange,
		callbacks: opts.Callbacks,
		locator:   opts.Locator,
		runID:     runID,
		log:       log,
		policy: NewPolicy(PolicyOptions{
			Checkpoint:        opts.Checkpoint,
			Assessor:          opts.Assessor,
			AutoContinueLimit: opts.AutoContinueLimit,
			Logger:            log,
		}),
	}
}

// RunID returns the driver's log correlation id.
func (d *Driver) RunID() string { return d.runID }

// Policy exposes the driver's continuation policy, mainly for inspection.
func (d *Driver) Policy() *Policy { return d.policy }

// Run drives the session until the caller has no more messages, the
// caller aborts a tool call, the stream ends, or ctx is cancelled.
// Cancellation is not an error; any other stream failure is returned after
// the thinking indicator is forced inactive.
func (d *Driver) Run(ctx context.Context) error {
	first, err := d.nextMessage(ctx)
	if err != nil {
		return err
	}
	if first == nil {
		d.log.Debug().Msg("no initial message, ending session")
		d.end()
		return nil
	}
	d.applyCallerMessage(first)
	d.push(*first)

	events := d.exchange.Events()
	for {
		select {
		case <-ctx.Done():
			d.setThinking(false)
			d.log.Debug().Msg("session cancelled")
			return nil
		case ev, ok := <-events:
			if !ok {
				return d.finishStream(ctx)
			}
			done, err := d.handleEvent(ctx, ev)
			if err != nil {
				d.setThinking(false)
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// finishStream classifies the end of the event stream.
func (d *Driver) finishStream(ctx context.Context) error {
	d.setThinking(false)
	err := d.exchange.Err()
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	d.log.Error().Err(err).Msg("event stream failed")
	return err
}

func (d *Driver) handleEvent(ctx context.Context, ev Event) (done bool, err error) {
	// The caller sees every event, in arrival order, before any decision
	// the driver makes about it.
	if d.callbacks.OnMessage != nil {
		d.callbacks.OnMessage(ev)
	}

	switch ev.Kind {
	case EventInit:
		return false, d.handleInit(ctx, ev.Init)
	case EventAssistant:
		d.policy.ObserveAssistantText(ev.Assistant.Text)
	case EventUser:
		for _, id := range ev.User.ToolUseIDs {
			if d.callbacks.IsAborted != nil && d.callbacks.IsAborted(id) {
				d.log.Info().Str("tool_use_id", id).Msg("aborted tool call observed, ending session")
				d.end()
				return true, nil
			}
		}
	case EventResult:
		return d.handleResult(ctx, ev.Result)
	}
	return false, nil
}

func (d *Driver) handleInit(ctx context.Context, init *InitEvent) error {
	if init.SessionID != "" {
		if d.locator != nil {
			if err := d.locator.WaitForSession(ctx, init.SessionID); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		if d.callbacks.OnSessionFound != nil {
			d.callbacks.OnSessionFound(init.SessionID)
		}
	}
	d.setThinking(true)
	return nil
}

func (d *Driver) handleResult(ctx context.Context, result *ResultEvent) (done bool, err error) {
	d.setThinking(false)

	decision := d.policy.Evaluate(ctx, TurnResult{
		Outcome:   result.Outcome,
		TurnCount: result.TurnCount,
	})
	if decision.Continue {
		d.push(Message{Text: decision.Message, Mode: d.mode})
		return false, nil
	}

	// Turn complete: flush any pending compaction notice, signal
	// readiness, and ask the caller for the next message.
	if d.policy.Compacting() {
		d.policy.SetCompacting(false)
		if d.callbacks.OnCompletionEvent != nil {
			d.callbacks.OnCompletionEvent(compactionNotice)
		}
	}
	if d.callbacks.OnReady != nil {
		d.callbacks.OnReady()
	}

	next, err := d.nextMessage(ctx)
	if err != nil {
		return false, err
	}
	if next == nil {
		d.log.Debug().Msg("caller has no next message, ending session")
		d.end()
		return true, nil
	}
	d.applyCallerMessage(next)
	d.push(*next)
	return false, nil
}

// nextMessage asks the caller for its next message. Cancellation surfaces
// as a nil message with nil error so the loop can end silently.
func (d *Driver) nextMessage(ctx context.Context) (*Message, error) {
	msg, err := d.callbacks.NextMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// applyCallerMessage updates the active mode and special-command state
// from a caller-supplied message.
func (d *Driver) applyCallerMessage(msg *Message) {
	d.mode = msg.Mode
	d.policy.NoteUserMessage()
	if isCompactCommand(msg.Text) {
		d.policy.SetCompacting(true)
	}
}

func (d *Driver) push(msg Message) {
	if d.ended {
		return
	}
	d.exchange.Push(msg)
}

func (d *Driver) end() {
	if d.ended {
		return
	}
	d.ended = true
	d.exchange.End()
}

func (d *Driver) setThinking(v bool) {
	if d.thinking == v {
		return
	}
	d.thinking = v
	if d.callbacks.OnThinkingChange != nil {
		d.callbacks.OnThinkingChange(v)
	}
}

func isCompactCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == compactCommand || strings.HasPrefix(trimmed, compactCommand+" ")
}
