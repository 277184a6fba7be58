package drive

import (
	"encoding/json"
	"strings"
)

// EventKind discriminates between event variants.
type EventKind string

const (
	EventInit      EventKind = "init"
	EventAssistant EventKind = "assistant"
	EventResult    EventKind = "result"
	EventUser      EventKind = "user"
	EventOther     EventKind = "other"
)

// TurnOutcome classifies how a turn ended.
type TurnOutcome string

const (
	OutcomeSuccess TurnOutcome = "success"
	OutcomeError   TurnOutcome = "error"
	OutcomeOther   TurnOutcome = "other"
)

// Event is a single entry in the transport's event stream. Exactly one of
// the variant pointers matching Kind is set; unrecognized payloads travel
// as EventOther with only Raw populated, so forward compatibility never
// requires probing loose fields.
type Event struct {
	Kind      EventKind       `json:"kind"`
	Init      *InitEvent      `json:"init,omitempty"`
	Assistant *AssistantEvent `json:"assistant,omitempty"`
	Result    *ResultEvent    `json:"result,omitempty"`
	User      *UserEvent      `json:"user,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// InitEvent announces the transport's session identity.
type InitEvent struct {
	SessionID string `json:"session_id"`
}

// AssistantEvent carries a chunk of assistant output text.
type AssistantEvent struct {
	Text string `json:"text"`
}

// ResultEvent marks a turn boundary.
type ResultEvent struct {
	Outcome   TurnOutcome `json:"outcome"`
	TurnCount int         `json:"turn_count"`
}

// UserEvent is the transport's echo of a user-role message carrying tool
// results. Only the tool-use ids are retained; they are what abort
// tracking needs.
type UserEvent struct {
	ToolUseIDs []string `json:"tool_use_ids,omitempty"`
}

// NewInitEvent creates an Event wrapping a session announcement.
func NewInitEvent(sessionID string) Event {
	return Event{Kind: EventInit, Init: &InitEvent{SessionID: sessionID}}
}

// NewAssistantEvent creates an Event wrapping assistant text.
func NewAssistantEvent(text string) Event {
	return Event{Kind: EventAssistant, Assistant: &AssistantEvent{Text: text}}
}

// NewResultEvent creates an Event marking a turn boundary.
func NewResultEvent(outcome TurnOutcome, turnCount int) Event {
	return Event{Kind: EventResult, Result: &ResultEvent{Outcome: outcome, TurnCount: turnCount}}
}

// NewUserEvent creates an Event wrapping a tool-result echo.
func NewUserEvent(toolUseIDs ...string) Event {
	return Event{Kind: EventUser, User: &UserEvent{ToolUseIDs: toolUseIDs}}
}

// Wire shapes for the stream-json framing most agent CLIs emit. Only the
// fields each kind guarantees are decoded; everything else rides along in
// Raw.

type wireEvent struct {
	Type      string       `json:"type"`
	Subtype   string       `json:"subtype"`
	SessionID string       `json:"session_id"`
	NumTurns  int          `json:"num_turns"`
	IsError   bool         `json:"is_error"`
	Message   *wireMessage `json:"message"`
}

type wireMessage struct {
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	ToolUseID string `json:"tool_use_id"`
}

// DecodeEvent maps one raw stream-json line onto the tagged-variant model.
// Anything it does not recognize becomes EventOther; the original payload
// is preserved in Raw for every kind.
func DecodeEvent(data []byte) Event {
	raw := json.RawMessage(append([]byte(nil), data...))

	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		return Event{Kind: EventOther, Raw: raw}
	}

	switch we.Type {
	case "system":
		if we.Subtype == "init" && we.SessionID != "" {
			ev := NewInitEvent(we.SessionID)
			ev.Raw = raw
			return ev
		}
	case "assistant":
		if we.Message != nil {
			var b strings.Builder
			for _, part := range we.Message.Content {
				if part.Type == "text" {
					b.WriteString(part.Text)
				}
			}
			ev := NewAssistantEvent(b.String())
			ev.Raw = raw
			return ev
		}
	case "result":
		ev := NewResultEvent(resultOutcome(we), we.NumTurns)
		ev.Raw = raw
		return ev
	case "user":
		if we.Message != nil {
			var ids []string
			for _, part := range we.Message.Content {
				if part.Type == "tool_result" && part.ToolUseID != "" {
					ids = append(ids, part.ToolUseID)
				}
			}
			ev := NewUserEvent(ids...)
			ev.Raw = raw
			return ev
		}
	}

	return Event{Kind: EventOther, Raw: raw}
}

func resultOutcome(we wireEvent) TurnOutcome {
	switch {
	case we.IsError || strings.HasPrefix(we.Subtype, "error"):
		return OutcomeError
	case we.Subtype == "success":
		return OutcomeSuccess
	}
	return OutcomeOther
}
